package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/models"
	"github.com/noah-isme/cms-timetable/pkg/middleware/requestid"
)

// Audit records operator actions that succeeded. It must run after JWT.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		operator := ""
		if value, ok := c.Get(ContextClaimsKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				operator = claims.Username
			}
		}

		audit.Info(action,
			zap.String("operator", operator),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", requestid.Value(c)),
		)
	}
}
