package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionCookie = "cw_sid"
	sessionKey    = "session_id"
)

type cookieConfig struct {
	secure bool
	maxAge time.Duration
}

// sessionMiddleware assigns every browser a session id cookie
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err == nil {
			_, err = uuid.Parse(sid)
		}
		if err != nil {
			sid = uuid.New().String()
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			MaxAge:   int(h.cookies.maxAge / time.Second),
			HttpOnly: true,
			Secure:   h.cookies.secure,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
