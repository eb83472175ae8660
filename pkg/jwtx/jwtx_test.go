package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte("unit-test-secret"), "wallet-api", time.Minute)
	require.NoError(t, err)
	return s
}

func TestMintVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	raw, err := s.Mint(42, "alice", time.Now())
	require.NoError(t, err)

	claims, err := s.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)

	id, err := claims.TelegramUserID()
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
}

func TestVerifyRejectsExpired(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	raw, err := s.Mint(42, "alice", time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = s.Verify(raw)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	a := newTestSigner(t)
	b, err := NewSigner([]byte("other-secret"), "wallet-api", time.Minute)
	require.NoError(t, err)

	raw, err := a.Mint(42, "alice", time.Now())
	require.NoError(t, err)

	_, err = b.Verify(raw)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	other, err := NewSigner([]byte("unit-test-secret"), "someone-else", time.Minute)
	require.NoError(t, err)
	raw, err := other.Mint(42, "alice", time.Now())
	require.NoError(t, err)

	_, err = newTestSigner(t).Verify(raw)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := newTestSigner(t).Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestNewSignerRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewSigner(nil, "wallet-api", time.Minute)
	require.ErrorIs(t, err, ErrNoSecret)
}
