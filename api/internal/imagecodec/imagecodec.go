package imagecodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// ErrNotFound is returned by EncodeFile when the image path does not exist.
var ErrNotFound = errors.New("image not found")

type notFoundError struct {
	path string
	err  error
}

func (e *notFoundError) Error() string { return fmt.Sprintf("%s: %s", ErrNotFound, e.path) }

func (e *notFoundError) Unwrap() []error { return []error{ErrNotFound, e.err} }

// Encode returns the standard base64 text of b. It never fails.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeFile reads the image at path and returns its base64 text.
func EncodeFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &notFoundError{path: path, err: err}
		}
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	return Encode(b), nil
}

func DataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// DecodeMaybeDataURL decodes bare base64 or a data URL. For a data URL the
// MIME type from the prefix is returned as well.
func DecodeMaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return b, hintMIME, nil
	}
	if b2, err2 := base64.URLEncoding.DecodeString(s); err2 == nil {
		return b2, hintMIME, nil
	}
	return nil, "", err
}

// DetectMIME sniffs the content type of b.
func DetectMIME(b []byte) string {
	return mimetype.Detect(b).String()
}

// MIMEOfBase64 sniffs the image type from the head of a base64 payload.
// Unknown or empty payloads are labelled as JPEG.
func MIMEOfBase64(b64 string) string {
	head := b64
	if len(head) > 64 {
		head = head[:64]
	}
	b, err := base64.StdEncoding.DecodeString(head)
	if err != nil || len(b) == 0 {
		return MIMEJPEG
	}
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return MIMEJPEG
	case len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A:
		return MIMEPNG
	}
	return MIMEJPEG
}

// IsSupportedImage reports whether mime is one of the accepted upload types.
func IsSupportedImage(mime string) bool {
	m := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	switch m {
	case MIMEJPEG, "image/jpg", MIMEPNG:
		return true
	}
	return false
}
