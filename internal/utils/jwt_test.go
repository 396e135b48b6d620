package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/medconsult-api/internal/models"
)

func TestSignAndVerify(t *testing.T) {
	m, err := NewTokenManager("secret")
	require.NoError(t, err)

	tok, err := m.Sign(Claims{UserID: "d1", Email: "a@x.com", Role: models.RoleDoctor, Purpose: PurposeSession}, time.Hour)
	require.NoError(t, err)

	claims, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "d1", claims.UserID)
	assert.Equal(t, "d1", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, models.RoleDoctor, claims.Role)
	assert.Equal(t, PurposeSession, claims.Purpose)
	assert.NotEmpty(t, claims.ID)
}

func TestEachTokenHasDistinctID(t *testing.T) {
	m, _ := NewTokenManager("secret")
	a, _ := m.Sign(Claims{UserID: "p1"}, time.Hour)
	b, _ := m.Sign(Claims{UserID: "p1"}, time.Hour)

	ca, err := m.Verify(a)
	require.NoError(t, err)
	cb, err := m.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	past, _ := NewTokenManager("secret", WithClock(func() time.Time { return issued }))
	tok, err := past.Sign(Claims{UserID: "p1"}, time.Hour)
	require.NoError(t, err)

	m, _ := NewTokenManager("secret")
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	a, _ := NewTokenManager("one")
	b, _ := NewTokenManager("two")
	tok, _ := a.Sign(Claims{UserID: "p1"}, time.Hour)

	_, err := b.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	m, _ := NewTokenManager("secret")
	claims := &Claims{UserID: "p1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	m, _ := NewTokenManager("secret")
	_, err := m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("")
	assert.ErrorIs(t, err, ErrNoSecret)
}
