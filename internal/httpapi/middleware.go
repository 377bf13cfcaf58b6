package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/danmuck/landctl/internal/auth"
	"github.com/danmuck/landctl/internal/observability"
	"github.com/danmuck/landctl/internal/registry"
	"github.com/gin-gonic/gin"
)

const codeUnauthenticated = "Unauthenticated"

// identify resolves the caller from a bearer token, or from PrincipalHeader
// when trusted. Requests with neither run as registry.Anonymous.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := registry.Anonymous
		if header := c.GetHeader("Authorization"); header != "" {
			token, ok := auth.BearerToken(header)
			if !ok || s.opts.Resolver == nil {
				abortUnauthenticated(c, "bearer token required")
				return
			}
			p, err := s.opts.Resolver.Resolve(token)
			if err != nil {
				abortUnauthenticated(c, err.Error())
				return
			}
			caller = p
		} else if s.opts.TrustPrincipalHeader {
			if p := strings.TrimSpace(c.GetHeader(PrincipalHeader)); p != "" {
				caller = registry.Principal(p)
			}
		}
		c.Set(observability.CallerKey, caller)
		c.Next()
	}
}

// requireCaller rejects anonymous requests.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		if callerOf(c) == registry.Anonymous {
			abortUnauthenticated(c, "authentication required")
			return
		}
		c.Next()
	}
}

func callerOf(c *gin.Context) registry.Principal {
	if v, ok := c.Get(observability.CallerKey); ok {
		if p, ok := v.(registry.Principal); ok {
			return p
		}
	}
	return registry.Anonymous
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": codeUnauthenticated})
}

// statusFor maps a registry error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrLandNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrUnauthorized), errors.Is(err, registry.ErrOwnershipError):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrLandAlreadyExists), errors.Is(err, registry.ErrLandNotForSale):
		return http.StatusConflict
	case errors.Is(err, registry.ErrInvalidCoordinates),
		errors.Is(err, registry.ErrInvalidDimensions),
		errors.Is(err, registry.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. op, when set, is counted as a failed mutation.
func fail(c *gin.Context, op string, err error) {
	code := registry.Code(err)
	if op != "" && code != "" {
		observability.RecordRegistryOp(op, code)
	}
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "code": code})
}
