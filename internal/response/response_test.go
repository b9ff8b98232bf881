package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/response"
)

func TestFailWithFields_Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"count": "count is required"})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != response.ErrValidation || body.Error.Fields["count"] == "" {
		t.Errorf("error body = %+v", body.Error)
	}
	if body.Metadata.RequestID != "req-42" || w.Header().Get("X-Request-ID") != "req-42" {
		t.Errorf("request id = %q / %q", body.Metadata.RequestID, w.Header().Get("X-Request-ID"))
	}
}

func TestGetMessage_Unknown(t *testing.T) {
	if got := response.GetMessage("NOPE"); got != "An unexpected error occurred." {
		t.Errorf("GetMessage = %q", got)
	}
}
