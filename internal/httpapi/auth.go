package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lirancohen/questengine/internal/auth"
)

const principalContextKey = "principal"

// requireAuth rejects the request with 401 unless it carries a valid bearer
// JWT, attaching the recovered Principal to the echo context on success.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := s.authenticate(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or invalid bearer token"})
		}
		c.Set(principalContextKey, p)
		return next(c)
	}
}

// optionalAuth attaches a Principal to the context when a valid bearer
// token is present, but never rejects the request.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if p, err := s.authenticate(c); err == nil {
			c.Set(principalContextKey, p)
		}
		return next(c)
	}
}

func (s *Server) authenticate(c echo.Context) (*auth.Principal, error) {
	header := c.Request().Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}
	claims, err := auth.ValidateToken(token, s.tokenConfig)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{Address: claims.Address}, nil
}

// principal returns the authenticated caller, or nil if the request carries
// none (only possible on optionalAuth-guarded routes).
func principal(c echo.Context) *auth.Principal {
	p, _ := c.Get(principalContextKey).(*auth.Principal)
	return p
}

func newEventID() string {
	return uuid.NewString()
}
