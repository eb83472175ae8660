package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("test-service-secret")
	plaintext := "ridge crater lunar orbit comet nebula quasar pulsar flare dust belt moon"

	sealed, err := Seal(secret, plaintext)
	require.NoError(t, err)
	require.NotContains(t, sealed, "ridge")

	opened, err := Open(secret, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	t.Parallel()

	secret := []byte("test-service-secret")

	a, err := Seal(secret, "same value")
	require.NoError(t, err)
	b, err := Seal(secret, "same value")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	sealed, err := Seal([]byte("right secret"), "payload")
	require.NoError(t, err)

	_, err = Open([]byte("wrong secret"), sealed)
	require.Error(t, err)
}

func TestOpenRejectsTamperedBlob(t *testing.T) {
	t.Parallel()

	secret := []byte("test-service-secret")
	sealed, err := Seal(secret, "payload")
	require.NoError(t, err)

	// Flip one character in the middle of the blob.
	mid := len(sealed) / 2
	flipped := sealed[:mid]
	if sealed[mid] == 'A' {
		flipped += "B"
	} else {
		flipped += "A"
	}
	flipped += sealed[mid+1:]

	_, err = Open(secret, flipped)
	require.Error(t, err)
}

func TestOpenRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "short", "!!!not-base64!!!"} {
		_, err := Open([]byte("secret"), s)
		require.ErrorIs(t, err, ErrSealedFormat)
	}
}
