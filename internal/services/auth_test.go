package services

import (
	"context"
	"testing"
	"time"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestAuth(t *testing.T) (*AuthService, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewAuthService(f.db, testSecret, time.Hour, NewMemoryRevoker()), f
}

func TestModeratorLogin(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, auth.EnsureModerator("admin", "s3cret"))
	require.NoError(t, auth.EnsureModerator("admin", "ignored"))

	_, err := auth.Login("admin", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))

	token, err := auth.Login("admin", "s3cret")
	require.NoError(t, err)

	identity, err := auth.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, identity.IsModerator())
	assert.NotZero(t, identity.HostID)
	assert.NotEmpty(t, identity.TokenID)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	auth, _ := newTestAuth(t)

	_, err := auth.Register("mod", "pw")
	require.NoError(t, err)
	_, err = auth.Register("mod", "pw")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestParticipantLogin(t *testing.T) {
	auth, f := newTestAuth(t)
	instance, users := f.seedInstance(t, "login", user("ana", 1, "g"))

	_, _, err := auth.ParticipantLogin("nope")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))

	token, got, err := auth.ParticipantLogin(users[0].AccessCode)
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, got.ID)

	identity, err := auth.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, identity.IsParticipant())
	assert.Equal(t, users[0].ID, identity.UserID)

	require.NoError(t, f.db.Model(&models.AssessmentInstance{}).Where("id = ?", instance.ID).Update("finished", true).Error)
	_, _, err = auth.ParticipantLogin(users[0].AccessCode)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated), "finished instances reject logins")
}

func TestValidateTokenFailsClosed(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key any) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong secret": sign(tokenClaims{Role: RoleModerator, RegisteredClaims: valid}, jwt.SigningMethodHS256, []byte("other")),
		"expired": sign(tokenClaims{Role: RoleModerator, RegisteredClaims: jwt.RegisteredClaims{
			Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, jwt.SigningMethodHS256, []byte(testSecret)),
		"no expiry":    sign(tokenClaims{Role: RoleModerator, RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}, jwt.SigningMethodHS256, []byte(testSecret)),
		"unknown role": sign(tokenClaims{Role: "root", RegisteredClaims: valid}, jwt.SigningMethodHS256, []byte(testSecret)),
		"bad subject":  sign(tokenClaims{Role: RoleModerator, RegisteredClaims: jwt.RegisteredClaims{Subject: "x", ExpiresAt: valid.ExpiresAt}}, jwt.SigningMethodHS256, []byte(testSecret)),
		"alg none":     sign(tokenClaims{Role: RoleModerator, RegisteredClaims: valid}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := auth.ValidateToken(ctx, token)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated), "got %v", err)
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	token, err := auth.Register("mod", "pw")
	require.NoError(t, err)
	identity, err := auth.ValidateToken(ctx, token)
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, identity))
	_, err = auth.ValidateToken(ctx, token)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthenticated))

	other, err := auth.Login("mod", "pw")
	require.NoError(t, err)
	_, err = auth.ValidateToken(ctx, other)
	assert.NoError(t, err, "only the presented token is revoked")
}
