package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	VisitorIDKey     = "visitor_id"
	VisitorCookie    = "visitor_id"
	visitorCookieAge = 365 * 24 * 60 * 60
)

// VisitorID makes sure every request carries a visitor id, issuing a cookie
// on first contact.
func VisitorID(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(VisitorCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, id, visitorCookieAge, "/", "", secure, true)
		}
		c.Set(VisitorIDKey, id)
		c.Next()
	}
}

// GetVisitorID returns the id set by VisitorID, or "".
func GetVisitorID(c *gin.Context) string {
	return c.GetString(VisitorIDKey)
}
