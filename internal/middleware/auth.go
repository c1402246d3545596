package middleware

import (
	"context"
	"strings"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*services.Identity, error)
}

// JWTAuth accepts "Authorization: Bearer <token>", or a token query parameter
// for websocket handshakes where browsers cannot set headers.
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, apperrors.Unauthenticated("invalid authorization header format"))
			return
		}
		if token == "" {
			abort(c, apperrors.Unauthenticated("authorization header required"))
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token"), true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := Identity(c); id == nil || !id.IsModerator() {
			abort(c, apperrors.Unauthorized("moderator role required"))
			return
		}
		c.Next()
	}
}

func RequireParticipant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := Identity(c); id == nil || !id.IsParticipant() {
			abort(c, apperrors.Unauthorized("participant role required"))
			return
		}
		c.Next()
	}
}

// Identity returns the caller set by JWTAuth, or nil.
func Identity(c *gin.Context) *services.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*services.Identity)
	return id
}

func abort(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(code), gin.H{
		"error": apperrors.PublicMessage(err),
		"code":  code,
	})
}
