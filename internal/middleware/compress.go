package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// CompressConfig tunes the Compress middleware.
type CompressConfig struct {
	Quality   int
	MinLength int
}

// DefaultCompressConfig compresses bodies of 1 KiB or more. Question batches
// usually cross that; envelopes for rewards and tasks don't.
var DefaultCompressConfig = CompressConfig{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// compressWriter buffers the body until MinLength is reached, then switches the
// response to brotli. Shorter bodies go out untouched.
type compressWriter struct {
	gin.ResponseWriter
	br        *brotli.Writer
	quality   int
	minLength int
	buf       []byte
	started   bool
}

func (w *compressWriter) Write(data []byte) (int, error) {
	if w.started {
		return w.br.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minLength {
		return len(data), nil
	}

	w.started = true
	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.br = brotli.NewWriterLevel(w.ResponseWriter, w.quality)

	if _, err := w.br.Write(w.buf); err != nil {
		return 0, err
	}
	w.buf = nil
	return len(data), nil
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// finish flushes whatever is left: the brotli trailer, or the raw short body.
func (w *compressWriter) finish() error {
	if w.started {
		return w.br.Close()
	}
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf)
	w.buf = nil
	return err
}

// Compress returns brotli compression with the default settings.
func Compress() gin.HandlerFunc {
	return CompressWithConfig(DefaultCompressConfig)
}

// CompressWithConfig brotli-encodes JSON responses for clients that accept "br".
// WebSocket upgrades are passed through.
func CompressWithConfig(cfg CompressConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = brotli.DefaultCompression
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultCompressConfig.MinLength
	}

	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &compressWriter{
			ResponseWriter: c.Writer,
			quality:        cfg.Quality,
			minLength:      cfg.MinLength,
		}
		c.Writer = w

		defer func() {
			if err := w.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
