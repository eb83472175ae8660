package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
	"github.com/telewallet/telewallet/internal/wallet/initdata"
	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-TOKEN"

// signedInitData builds a correctly signed payload the way the Telegram
// client would.
func signedInitData(botToken string, pairs map[string]string) string {
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

	values := url.Values{}
	for k, v := range pairs {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func newAuthFixture(t *testing.T) (*AuthService, store.Store) {
	t.Helper()

	st := newTestStore(t)
	signer, err := jwtx.NewSigner([]byte("test-session-secret"), "wallet-api", 15*time.Minute)
	require.NoError(t, err)

	return &AuthService{
		Store:    st,
		Verifier: initdata.NewVerifier(testBotToken, 0),
		Sessions: signer,
	}, st
}

func alicePairs() map[string]string {
	return map[string]string{
		"user":      `{"id":42,"first_name":"Alice","last_name":"Liddell","username":"alice","photo_url":"https://t.me/i/userpic/a.jpg"}`,
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":  "AAE42",
	}
}

func TestAuthLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first login creates the account and mints a token", func(t *testing.T) {
		svc, _ := newAuthFixture(t)

		acct, token, err := svc.Login(ctx, signedInitData(testBotToken, alicePairs()))
		require.NoError(t, err)
		require.Equal(t, int64(42), acct.TelegramUserID)
		require.Equal(t, "alice", *acct.Username)
		require.Equal(t, "Alice", *acct.FirstName)
		require.Equal(t, "Liddell", *acct.LastName)
		require.Nil(t, acct.ReferredBy)

		claims, err := svc.Sessions.Verify(token)
		require.NoError(t, err)
		uid, err := claims.TelegramUserID()
		require.NoError(t, err)
		require.Equal(t, int64(42), uid)
		require.Equal(t, "alice", claims.Username)
	})

	t.Run("captures referral code on first login only", func(t *testing.T) {
		svc, st := newAuthFixture(t)

		pairs := alicePairs()
		pairs["start_param"] = "ref_FRIEND01"
		_, _, err := svc.Login(ctx, signedInitData(testBotToken, pairs))
		require.NoError(t, err)

		acct, err := st.Accounts().GetByTelegramID(ctx, 42)
		require.NoError(t, err)
		require.Equal(t, "FRIEND01", *acct.ReferredBy)

		// A later launch with a different code does not rewrite history.
		pairs["start_param"] = "ref_OTHER"
		_, _, err = svc.Login(ctx, signedInitData(testBotToken, pairs))
		require.NoError(t, err)

		acct, err = st.Accounts().GetByTelegramID(ctx, 42)
		require.NoError(t, err)
		require.Equal(t, "FRIEND01", *acct.ReferredBy)
	})

	t.Run("reconciles changed profile fields", func(t *testing.T) {
		svc, st := newAuthFixture(t)

		_, _, err := svc.Login(ctx, signedInitData(testBotToken, alicePairs()))
		require.NoError(t, err)

		// PIN state set between logins must survive the reconcile.
		require.NoError(t, st.Accounts().SetPin(ctx, 42, "1234"))

		pairs := alicePairs()
		pairs["user"] = `{"id":42,"first_name":"Alice","username":"alice_renamed"}`
		acct, _, err := svc.Login(ctx, signedInitData(testBotToken, pairs))
		require.NoError(t, err)
		require.Equal(t, "alice_renamed", *acct.Username)
		// Absent fields are left alone, never cleared.
		require.Equal(t, "Liddell", *acct.LastName)
		require.NotNil(t, acct.PinCode)
	})

	t.Run("unchanged profile performs no update", func(t *testing.T) {
		svc, _ := newAuthFixture(t)

		first, _, err := svc.Login(ctx, signedInitData(testBotToken, alicePairs()))
		require.NoError(t, err)

		second, _, err := svc.Login(ctx, signedInitData(testBotToken, alicePairs()))
		require.NoError(t, err)
		require.Equal(t, first.UpdatedAt, second.UpdatedAt)
	})

	t.Run("tampered payload", func(t *testing.T) {
		svc, _ := newAuthFixture(t)

		raw := signedInitData("999999:OTHER-TOKEN", alicePairs())
		_, _, err := svc.Login(ctx, raw)
		require.ErrorIs(t, err, initdata.ErrSignatureInvalid)
	})

	t.Run("stale payload", func(t *testing.T) {
		svc, _ := newAuthFixture(t)

		pairs := alicePairs()
		pairs["auth_date"] = strconv.FormatInt(time.Now().Add(-25*time.Hour).Unix(), 10)
		_, _, err := svc.Login(ctx, signedInitData(testBotToken, pairs))
		require.ErrorIs(t, err, initdata.ErrExpired)
	})
}

// raceStore forces the first GetByTelegramID through the not-found path even
// though the row already exists, reproducing a lost first-sight race: the
// subsequent Create collides with the winner's row.
type raceStore struct {
	store.Store
	misses int
}

func (s *raceStore) Accounts() store.Accounts {
	return &raceAccounts{Accounts: s.Store.Accounts(), misses: &s.misses}
}

type raceAccounts struct {
	store.Accounts
	misses *int
}

func (a *raceAccounts) GetByTelegramID(ctx context.Context, telegramUserID int64) (domain.Account, error) {
	if *a.misses > 0 {
		*a.misses--
		return domain.Account{}, store.ErrNotFound
	}
	return a.Accounts.GetByTelegramID(ctx, telegramUserID)
}

func TestResolveCreateRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := newTestStore(t)

	// The winner of the race already created the row, referral included.
	_, err := st.Accounts().Create(ctx, domain.Account{
		TelegramUserID: 42,
		Username:       optional("old_name"),
		ReferredBy:     optional("WINNER"),
	})
	require.NoError(t, err)

	svc := &AuthService{Store: &raceStore{Store: st, misses: 1}}

	acct, err := svc.Resolve(ctx, initdata.Identity{
		TelegramUserID: 42,
		Username:       "alice",
		ReferralCode:   "LOSER",
	})
	require.NoError(t, err)

	// The loser reconciles against the winner's row instead of erroring:
	// profile fields update, creation-only fields stay the winner's.
	require.Equal(t, int64(42), acct.TelegramUserID)
	require.Equal(t, "alice", *acct.Username)
	require.Equal(t, "WINNER", *acct.ReferredBy)

	// Still exactly one record, and it is the winner's row.
	stored, err := st.Accounts().GetByTelegramID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, acct.CreatedAt, stored.CreatedAt)
	require.Equal(t, "WINNER", *stored.ReferredBy)
}

func TestProfileDiff(t *testing.T) {
	t.Parallel()

	stored := func(s string) *string { return &s }
	acct := domain.Account{
		TelegramUserID: 42,
		Username:       stored("alice"),
		FirstName:      stored("Alice"),
	}

	t.Run("empty supplied values never clear", func(t *testing.T) {
		patch := profileDiff(acct, initdata.Identity{TelegramUserID: 42})
		require.True(t, patch.IsZero())
	})

	t.Run("only changed fields are patched", func(t *testing.T) {
		patch := profileDiff(acct, initdata.Identity{
			TelegramUserID: 42,
			Username:       "alice2",
			FirstName:      "Alice",
		})
		require.NotNil(t, patch.Username)
		require.Equal(t, "alice2", *patch.Username)
		require.Nil(t, patch.FirstName)
		require.Nil(t, patch.LastName)
	})
}
