package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/middleware"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/service"
	"github.com/rs/zerolog"
)

// SystemHandler serves health and anti-forgery bootstrap endpoints.
type SystemHandler struct {
	csrf *service.CSRFService
	log  zerolog.Logger
}

func NewSystemHandler(csrf *service.CSRFService, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		csrf: csrf,
		log:  log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// IssueCSRF godoc
// GET /api/csrf/
// Sets the csrftoken cookie. Clients echo it back in the X-CSRFToken header.
func (h *SystemHandler) IssueCSRF(c *gin.Context) {
	token, err := h.csrf.Issue(middleware.UserID(c))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to sign CSRF token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CSRFCookieName, token, int(h.csrf.TTL().Seconds()), "/", "", false, false)
	response.Success(c, http.StatusOK, gin.H{"csrf_token": token})
}
