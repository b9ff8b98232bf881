package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neuroboost/study-core/internal/response"
	"github.com/neuroboost/study-core/internal/service"
)

const (
	// ContextKeyUserID is the Gin context key for the resolved user.
	ContextKeyUserID = "user_id"

	CSRFCookieName = "csrftoken"
	CSRFHeader     = "X-CSRFToken"
)

// IdentifyUser resolves the user from the anti-forgery token (header first, then
// cookie). Requests without a valid token act as service.DemoUserID.
func IdentifyUser(csrf *service.CSRFService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := service.DemoUserID

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			token, _ = c.Cookie(CSRFCookieName)
		}
		if token != "" {
			if claims, err := csrf.Validate(token); err == nil && claims.Subject != "" {
				userID = claims.Subject
			}
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// RequireCSRF rejects unsafe requests that do not carry a valid token in the
// X-CSRFToken header.
func RequireCSRF(csrf *service.CSRFService) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		token := c.GetHeader(CSRFHeader)
		if token == "" {
			response.AbortFail(c, http.StatusForbidden, response.ErrCSRFRequired)
			return
		}
		if _, err := csrf.Validate(token); err != nil {
			response.AbortFail(c, http.StatusForbidden, response.ErrCSRFInvalid)
			return
		}
		c.Next()
	}
}

// UserID returns the user resolved by IdentifyUser.
func UserID(c *gin.Context) string {
	if id := c.GetString(ContextKeyUserID); id != "" {
		return id
	}
	return service.DemoUserID
}
