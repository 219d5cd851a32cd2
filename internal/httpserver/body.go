package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	errBodyTooLarge        = errors.New("request body too large")
	errUnsupportedEncoding = errors.New("unsupported content encoding")
)

// readBody returns the decoded request body as text. It writes the error response
// itself and reports false when the handler should stop.
func (s *Server) readBody(c *gin.Context) (string, bool) {
	text, err := decodeBody(c.Writer, c.Request, s.maxBodyBytes)
	switch {
	case err == nil:
		return text, true
	case errors.Is(err, errBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("body exceeds %d bytes", s.maxBodyBytes)})
	case errors.Is(err, errUnsupportedEncoding):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
	return "", false
}

// decodeBody reads r.Body, transparently inflating gzip or zstd content. Both the
// wire size and the inflated size are capped at limit bytes.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64) (string, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	var reader io.Reader = body
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return "", wrapReadErr("gzip", err)
		}
		defer zr.Close()
		reader = zr
	case "zstd":
		zr, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return "", wrapReadErr("zstd", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedEncoding, enc)
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return "", wrapReadErr("read body", err)
	}
	if int64(len(data)) > limit {
		return "", errBodyTooLarge
	}
	return string(data), nil
}

func wrapReadErr(op string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return fmt.Errorf("%s: %w", op, err)
}
