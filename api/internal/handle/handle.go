package handle

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"foodbot/api/internal/analyzer"
	"foodbot/api/internal/llm"
	"foodbot/api/internal/store"
)

const maxBodyBytes = 20 << 20

// Recorder persists finished analyses and reads them back by id.
// *store.AnalysisRepo implements it.
type Recorder interface {
	Insert(ctx context.Context, a *store.Analysis) error
	Get(ctx context.Context, id uuid.UUID) (*store.Analysis, error)
}

type Handle struct {
	reg     *analyzer.Registry
	rec     Recorder
	timeout time.Duration
}

// New builds the handlers. rec may be nil; timeout <= 0 means 180s.
func New(reg *analyzer.Registry, rec Recorder, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Handle{reg: reg, rec: rec, timeout: timeout}
}

func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/food/analyze", h.Analyze)
	mux.HandleFunc("/v1/food/describe", h.Describe)
	mux.HandleFunc("/v1/food/assess", h.Assess)
	mux.HandleFunc("/v1/food/upload", h.Upload)
	mux.HandleFunc("/v1/food/providers", h.Providers)
	mux.HandleFunc("GET /v1/food/analyses/{id}", h.GetAnalysis)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: "invalid_input"})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: msg, Kind: "not_found"})
}

// writeError maps the inference error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, llm.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, llm.ErrTransient):
		code = http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrAuthentication), errors.Is(err, llm.ErrUnknownResponse):
		code = http.StatusBadGateway
	}
	log.Printf("%s error: %v", op, err)
	writeJSON(w, code, errorBody{Error: op + " error: " + err.Error(), Kind: llm.KindName(err)})
}

// deadline reads X-Request-Timeout or ?timeoutSec= (seconds).
func (h *Handle) deadline(r *http.Request) time.Duration {
	d := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			d = time.Duration(v) * time.Second
		}
	}
	return d
}

func postOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "POST only", Kind: "invalid_input"})
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: "invalid_input"})
			return false
		}
		badRequest(w, "bad json: "+err.Error())
		return false
	}
	return true
}
