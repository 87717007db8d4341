package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.NoError(t, CheckPassword(hash, "password123"))
	assert.ErrorIs(t, CheckPassword(hash, "password124"), ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	ti := NewTokenIssuer(secret, 90*24*time.Hour)
	tok, exp, err := ti.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), exp, time.Minute)

	sub, err := ti.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestTokenRejections(t *testing.T) {
	ti := NewTokenIssuer(secret, time.Hour)
	tok, _, err := ti.Issue("user-1")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenIssuer("another-secret-another-secret-xx", time.Hour).Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer(secret, time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ti.Verify(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ti.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/expenses?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer b")
	assert.Equal(t, "b", TokenFromRequest(r))

	r.Header.Set(TokenHeader, "x")
	assert.Equal(t, "x", TokenFromRequest(r))
}

func TestMiddleware(t *testing.T) {
	ti := NewTokenIssuer(secret, time.Hour)
	var failed error
	h := Middleware(ti, func(w http.ResponseWriter, _ *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := OwnerFrom(r.Context())
		require.True(t, ok)
		io.WriteString(w, owner)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.ErrorIs(t, failed, ErrInvalidToken)

	tok, _, err := ti.Issue("owner-42")
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TokenHeader, tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-42", rec.Body.String())
}

func TestServiceRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), NewTokenIssuer(secret, time.Hour), log.New(log.Config{Output: io.Discard}))

	sess, err := svc.Register(ctx, Registration{Username: "testuser", Email: "test@example.com", Password: "password123", FullName: "Test User"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	sub, err := svc.Tokens().Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, sub)

	_, err = svc.Register(ctx, Registration{Username: "testuser", Email: "again@example.com", Password: "password123"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	_, err = svc.Register(ctx, Registration{Username: "x", Email: "not-an-email", Password: "password123"})
	assert.ErrorIs(t, err, ErrMissingField)

	login, err := svc.Login(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, login.UserID)

	_, errWrong := svc.Login(ctx, "testuser", "wrong-password")
	_, errUnknown := svc.Login(ctx, "ghost", "password123")
	assert.True(t, errors.Is(errWrong, ErrInvalidCredentials))
	assert.Equal(t, errWrong, errUnknown)
}
