package handle

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"foodbot/api/internal/analyzer"
	"foodbot/api/internal/imagecodec"
	"foodbot/api/internal/store"
)

type AnalyzeRequest struct {
	LLMName  string `json:"llm_name"`
	ImageB64 string `json:"image_b64"`
	Prompt   string `json:"prompt,omitempty"`
}

type AnalyzeResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Analysis    string `json:"analysis"`
	Provider    string `json:"provider"`
	VisionModel string `json:"vision_model"`
	TextModel   string `json:"text_model"`
}

type AssessRequest struct {
	LLMName     string `json:"llm_name"`
	Description string `json:"description"`
}

type ProviderInfo struct {
	Name        string `json:"name"`
	VisionModel string `json:"vision_model"`
	TextModel   string `json:"text_model"`
}

// AnalysisRecord is a stored analysis as served by GET /v1/food/analyses/{id}.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Source      string    `json:"source"`
	ImageMIME   string    `json:"image_mime"`
	Provider    string    `json:"provider"`
	VisionModel string    `json:"vision_model"`
	TextModel   string    `json:"text_model"`
	Description string    `json:"description"`
	Analysis    string    `json:"analysis"`
	ElapsedMS   int64     `json:"elapsed_ms"`
}

type ProvidersResponse struct {
	Default   string         `json:"default"`
	Providers []ProviderInfo `json:"providers"`
}

func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	img, ok := decodeImage(w, req.ImageB64)
	if !ok {
		return
	}
	a, err := h.reg.Get(req.LLMName)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	h.analyze(w, r, a, img, req.Prompt)
}

// Upload accepts multipart form data with an "image" file and an optional
// "llm_name" field.
func (h *Handle) Upload(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: "invalid_input"})
			return
		}
		badRequest(w, "bad multipart form: "+err.Error())
		return
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "missing image file")
		return
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		badRequest(w, "read image: "+err.Error())
		return
	}
	if len(img) == 0 {
		badRequest(w, "empty image")
		return
	}
	if mime := imagecodec.DetectMIME(img); !imagecodec.IsSupportedImage(mime) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "unsupported image type " + mime + "; send JPEG or PNG", Kind: "invalid_input"})
		return
	}
	a, err := h.reg.Get(r.FormValue("llm_name"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	h.analyze(w, r, a, img, r.FormValue("prompt"))
}

func (h *Handle) analyze(w http.ResponseWriter, r *http.Request, a *analyzer.Analyzer, img []byte, prompt string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	res, err := a.AnalyzeWithPrompt(ctx, img, prompt)
	if err != nil {
		writeError(w, "analyze", err)
		return
	}
	id := uuid.New()
	h.record(id, img, res)
	writeJSON(w, http.StatusOK, AnalyzeResponse{
		ID:          id.String(),
		Description: res.Description,
		Analysis:    res.Analysis,
		Provider:    res.Provider,
		VisionModel: res.VisionModel,
		TextModel:   res.TextModel,
	})
}

func (h *Handle) record(id uuid.UUID, img []byte, res analyzer.Result) {
	if h.rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.rec.Insert(ctx, &store.Analysis{
		ID:          id,
		Source:      "http",
		ImageHash:   store.ImageHash(img),
		ImageMIME:   res.ImageMIME,
		Provider:    res.Provider,
		VisionModel: res.VisionModel,
		TextModel:   res.TextModel,
		Description: res.Description,
		Analysis:    res.Analysis,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	})
	if err != nil {
		log.Printf("history insert %s: %v", id, err)
	}
}

func (h *Handle) Describe(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	img, ok := decodeImage(w, req.ImageB64)
	if !ok {
		return
	}
	a, err := h.reg.Get(req.LLMName)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	prompt := req.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = a.DescribePrompt()
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	desc, err := a.DescribeImage(ctx, imagecodec.Encode(img), prompt)
	if err != nil {
		writeError(w, "describe", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": desc})
}

func (h *Handle) Assess(w http.ResponseWriter, r *http.Request) {
	if !postOnly(w, r) {
		return
	}
	var req AssessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		badRequest(w, "description is required")
		return
	}
	a, err := h.reg.Get(req.LLMName)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.deadline(r))
	defer cancel()

	out, err := a.AnalyzeDescription(ctx, req.Description)
	if err != nil {
		writeError(w, "assess", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": out})
}

// GetAnalysis returns a recorded analysis by the id /v1/food/analyze handed out.
func (h *Handle) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.rec == nil {
		notFound(w, "analysis history is not enabled")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "bad analysis id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	a, err := h.rec.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "analysis "+id.String()+" not found")
		return
	}
	if err != nil {
		log.Printf("history get %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "history lookup failed", Kind: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, AnalysisRecord{
		ID:          a.ID.String(),
		CreatedAt:   a.CreatedAt,
		Source:      a.Source,
		ImageMIME:   a.ImageMIME,
		Provider:    a.Provider,
		VisionModel: a.VisionModel,
		TextModel:   a.TextModel,
		Description: a.Description,
		Analysis:    a.Analysis,
		ElapsedMS:   a.ElapsedMS,
	})
}

func (h *Handle) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "GET only", Kind: "invalid_input"})
		return
	}
	out := ProvidersResponse{Default: h.reg.Default()}
	for _, n := range h.reg.Names() {
		a, _ := h.reg.Get(n)
		c := a.Config()
		out.Providers = append(out.Providers, ProviderInfo{Name: n, VisionModel: c.VisionModel, TextModel: c.TextModel})
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeImage accepts plain or data-URL base64 holding a JPEG or PNG.
func decodeImage(w http.ResponseWriter, b64 string) ([]byte, bool) {
	img, _, err := imagecodec.DecodeMaybeDataURL(b64)
	if err != nil || len(img) == 0 {
		badRequest(w, "bad image_b64")
		return nil, false
	}
	if mime := imagecodec.DetectMIME(img); !imagecodec.IsSupportedImage(mime) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "unsupported image type " + mime + "; send JPEG or PNG", Kind: "invalid_input"})
		return nil, false
	}
	return img, true
}
