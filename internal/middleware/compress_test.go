package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func compressRouter(body string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Compress())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, body)
	})
	return r
}

func TestCompress(t *testing.T) {
	long := strings.Repeat("question ", 300)

	tests := []struct {
		name         string
		body         string
		acceptEnc    string
		wantEncoding string
	}{
		{name: "large body with br", body: long, acceptEnc: "gzip, br", wantEncoding: "br"},
		{name: "br with quality value", body: long, acceptEnc: "br;q=1.0", wantEncoding: "br"},
		{name: "small body stays plain", body: "ok", acceptEnc: "br"},
		{name: "client without br", body: long, acceptEnc: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", tt.acceptEnc)
			w := httptest.NewRecorder()
			compressRouter(tt.body).ServeHTTP(w, req)

			if got := w.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Fatalf("Content-Encoding = %q, want %q", got, tt.wantEncoding)
			}

			var reader io.Reader = w.Body
			if tt.wantEncoding == "br" {
				reader = brotli.NewReader(w.Body)
			}
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(got) != tt.body {
				t.Errorf("body mismatch: got %d bytes, want %d", len(got), len(tt.body))
			}
		})
	}
}
