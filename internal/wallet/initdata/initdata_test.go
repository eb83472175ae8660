package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-TOKEN"

// signPayload computes the expected Telegram signature independently of the
// implementation under test.
func signPayload(botToken string, pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+pairs[k])
	}

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))

	mac := hmac.New(sha256.New, keyMAC.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodePayload builds the query-string form of pairs plus its signature.
func encodePayload(botToken string, pairs map[string]string) string {
	values := url.Values{}
	for k, v := range pairs {
		values.Set(k, v)
	}
	values.Set("hash", signPayload(botToken, pairs))
	return values.Encode()
}

func basePairs(authDate int64) map[string]string {
	return map[string]string{
		"user":      `{"id":42,"first_name":"Alice","last_name":"Liddell","username":"alice","photo_url":"https://t.me/i/userpic/a.jpg"}`,
		"auth_date": strconv.FormatInt(authDate, 10),
		"query_id":  "AAE42",
	}
}

func TestVerifyAtValidPayload(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	ident, err := v.VerifyAt(encodePayload(testBotToken, basePairs(now.Unix())), now)
	require.NoError(t, err)
	require.EqualValues(t, 42, ident.TelegramUserID)
	require.Equal(t, "Alice", ident.FirstName)
	require.Equal(t, "Liddell", ident.LastName)
	require.Equal(t, "alice", ident.Username)
	require.Equal(t, "https://t.me/i/userpic/a.jpg", ident.AvatarURL)
	require.Empty(t, ident.ReferralCode)
}

func TestVerifyAtTamperedHash(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	raw := encodePayload(testBotToken, basePairs(now.Unix()))
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)

	// Flip a single hex digit of the signature.
	h := values.Get("hash")
	var flipped byte = '0'
	if h[0] == '0' {
		flipped = '1'
	}
	values.Set("hash", string(flipped)+h[1:])

	_, err = v.VerifyAt(values.Encode(), now)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyAtWrongBotToken(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier("999999:OTHER-TOKEN", DefaultMaxAge)

	_, err := v.VerifyAt(encodePayload(testBotToken, basePairs(now.Unix())), now)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifyAtInputOrderIndependence(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	pairs := basePairs(now.Unix())
	hash := signPayload(testBotToken, pairs)

	// Hand-build the query string with keys in descending order; the
	// canonical check-string must not depend on wire order.
	var sb strings.Builder
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	for _, k := range keys {
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(pairs[k]))
		sb.WriteByte('&')
	}
	sb.WriteString("hash=" + hash)

	ident, err := v.VerifyAt(sb.String(), now)
	require.NoError(t, err)
	require.EqualValues(t, 42, ident.TelegramUserID)
}

func TestVerifyAtFreshnessBoundary(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	t.Run("exactly at the window is accepted", func(t *testing.T) {
		_, err := v.VerifyAt(encodePayload(testBotToken, basePairs(now.Unix()-86400)), now)
		require.NoError(t, err)
	})

	t.Run("one second past the window is rejected", func(t *testing.T) {
		_, err := v.VerifyAt(encodePayload(testBotToken, basePairs(now.Unix()-86401)), now)
		require.ErrorIs(t, err, ErrExpired)
	})
}

func TestVerifyAtConfigurableMaxAge(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, time.Hour)

	_, err := v.VerifyAt(encodePayload(testBotToken, basePairs(now.Unix()-3601)), now)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyAtMalformedPayloads(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	t.Run("empty payload", func(t *testing.T) {
		_, err := v.VerifyAt("", now)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("missing required field", func(t *testing.T) {
		for _, drop := range []string{"user", "auth_date"} {
			pairs := basePairs(now.Unix())
			delete(pairs, drop)
			_, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
			require.ErrorIs(t, err, ErrMalformed, "dropped %s", drop)
		}
	})

	t.Run("missing hash", func(t *testing.T) {
		values := url.Values{}
		for k, val := range basePairs(now.Unix()) {
			values.Set(k, val)
		}
		_, err := v.VerifyAt(values.Encode(), now)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("user is not JSON", func(t *testing.T) {
		pairs := basePairs(now.Unix())
		pairs["user"] = "not json"
		_, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("user has no id", func(t *testing.T) {
		pairs := basePairs(now.Unix())
		pairs["user"] = `{"first_name":"Alice"}`
		_, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
		require.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("auth_date is not an integer", func(t *testing.T) {
		pairs := basePairs(now.Unix())
		pairs["auth_date"] = "yesterday"
		_, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
		require.ErrorIs(t, err, ErrMalformed)
	})
}

func TestVerifyAtReferralCode(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	t.Run("strips ref_ prefix", func(t *testing.T) {
		pairs := basePairs(now.Unix())
		pairs["start_param"] = "ref_ABC123"
		ident, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
		require.NoError(t, err)
		require.Equal(t, "ABC123", ident.ReferralCode)
	})

	t.Run("keeps start_param without prefix as-is", func(t *testing.T) {
		pairs := basePairs(now.Unix())
		pairs["start_param"] = "campaign42"
		ident, err := v.VerifyAt(encodePayload(testBotToken, pairs), now)
		require.NoError(t, err)
		require.Equal(t, "campaign42", ident.ReferralCode)
	})
}

func TestVerifyAtAcceptsUppercaseHash(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	v := NewVerifier(testBotToken, DefaultMaxAge)

	pairs := basePairs(now.Unix())
	values := url.Values{}
	for k, val := range pairs {
		values.Set(k, val)
	}
	values.Set("hash", strings.ToUpper(signPayload(testBotToken, pairs)))

	_, err := v.VerifyAt(values.Encode(), now)
	require.NoError(t, err)
}
