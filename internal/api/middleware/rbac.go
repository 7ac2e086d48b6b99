package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/metrics"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// RBAC enforces role-based access control. It must run after Auth and checks
// the role read from the store, not the token claim.
func RBAC(gate ports.Gate, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := gate.Authorize(AuthContext(c), allowedRoles...); err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					metrics.AuthorizationDeniedTotal.Inc()
				}
				return err
			}
			return next(c)
		}
	}
}
