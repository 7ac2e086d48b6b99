package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
)

// errorBody documents the error envelope for swagger.
type errorBody struct {
	Error string `json:"error"`
}

// currentIdentity returns the AuthContext injected by the Auth middleware.
// A nil context means the route was mounted without Auth.
func currentIdentity(c echo.Context) (*domain.AuthContext, error) {
	ac := middleware.AuthContext(c)
	if ac == nil || ac.IdentityID == "" {
		return nil, domain.Unauthenticated(domain.ReasonNoToken, nil)
	}
	return ac, nil
}

// bindAndValidate decodes the body and checks required fields. Both failures
// are reported as validation errors.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Validation("invalid payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		return domain.Validation(err.Error())
	}
	return nil
}
