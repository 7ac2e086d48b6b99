package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/metrics"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const authContextKey = "auth_context"

// Auth authenticates the request through the gate and stores the resulting
// AuthContext on the echo context. Failures are returned to the HTTP error
// handler, which renders every unauthenticated case identically.
func Auth(gate ports.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ac, err := gate.Authenticate(c.Request().Context(), c.Request().Header)
			if err != nil {
				result := "error"
				if errors.Is(err, domain.ErrUnauthenticated) {
					result = domain.ReasonOf(err)
				}
				metrics.AuthenticationsTotal.WithLabelValues(result).Inc()
				return err
			}
			metrics.AuthenticationsTotal.WithLabelValues("ok").Inc()

			c.Set(authContextKey, ac)
			return next(c)
		}
	}
}

// AuthContext returns the context attached by Auth, or nil.
func AuthContext(c echo.Context) *domain.AuthContext {
	ac, _ := c.Get(authContextKey).(*domain.AuthContext)
	return ac
}

// SetAuthContext attaches ac to c. Handlers under test use it in place of Auth.
func SetAuthContext(c echo.Context, ac *domain.AuthContext) {
	c.Set(authContextKey, ac)
}
