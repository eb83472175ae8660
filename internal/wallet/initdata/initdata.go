// Package initdata verifies the signed payload a Telegram Mini App passes to
// its backend on launch. Verification is pure: a function of the payload, the
// bot token, and the clock.
//
// Telegram signs the payload with HMAC-SHA256 using a key derived from the
// bot token: signing_key = HMAC-SHA256(key="WebAppData", message=bot_token).
// The message is a canonical check-string built from every field except the
// signature itself, sorted by key and joined with newlines.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is the freshness window for auth_date. Payloads older than
// this are rejected; the bound is policy, not cryptography.
const DefaultMaxAge = 24 * time.Hour

// refPrefix marks a referral code carried in start_param.
const refPrefix = "ref_"

var (
	// ErrMalformed reports an unparsable payload or one missing required
	// fields. Always a client bug, never worth retrying.
	ErrMalformed = errors.New("initdata: malformed payload")

	// ErrSignatureInvalid reports a payload whose hash does not match the
	// recomputed signature. Indistinguishable between tampering and a wrong
	// bot token, deliberately.
	ErrSignatureInvalid = errors.New("initdata: hash mismatch")

	// ErrExpired reports a correctly signed payload whose auth_date falls
	// outside the freshness window.
	ErrExpired = errors.New("initdata: payload expired")
)

// Identity is the verified Telegram identity extracted from a valid payload.
type Identity struct {
	TelegramUserID int64
	FirstName      string
	LastName       string
	Username       string
	AvatarURL      string

	// ReferralCode is the start_param with its "ref_" prefix stripped, empty
	// when the launch carried no start_param.
	ReferralCode string
}

// Verifier checks initData payloads against one bot's token.
type Verifier struct {
	secret []byte
	maxAge time.Duration
}

// NewVerifier builds a Verifier for the given bot token. A non-positive
// maxAge falls back to DefaultMaxAge.
func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	// Signing key derivation happens once; it only depends on the token.
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))

	return &Verifier{secret: mac.Sum(nil), maxAge: maxAge}
}

// Verify validates raw against the current time. See VerifyAt.
func (v *Verifier) Verify(raw string) (Identity, error) {
	return v.VerifyAt(raw, time.Now())
}

// VerifyAt validates the raw query-string-encoded payload at the given time.
// It checks, in order: shape, signature, freshness, then the user field.
func (v *Verifier) VerifyAt(raw string, now time.Time) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, fmt.Errorf("%w: empty initData", ErrMalformed)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	userJSON := values.Get("user")
	authDate := values.Get("auth_date")
	providedHash := values.Get("hash")
	if userJSON == "" || authDate == "" || providedHash == "" {
		return Identity{}, fmt.Errorf("%w: missing user, auth_date, or hash", ErrMalformed)
	}

	calculated := v.signature(values)
	if !hmac.Equal([]byte(calculated), []byte(strings.ToLower(providedHash))) {
		return Identity{}, ErrSignatureInvalid
	}

	issued, err := strconv.ParseInt(authDate, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: auth_date is not an integer", ErrMalformed)
	}
	if now.Unix()-issued > int64(v.maxAge.Seconds()) {
		return Identity{}, ErrExpired
	}

	ident, err := parseUser(userJSON)
	if err != nil {
		return Identity{}, err
	}

	if startParam := values.Get("start_param"); startParam != "" {
		ident.ReferralCode = strings.TrimPrefix(startParam, refPrefix)
	}

	return ident, nil
}

// signature recomputes the hex-encoded HMAC over the canonical check-string:
// every pair except "hash", sorted by key byte-wise, joined as "key=value"
// lines with no trailing newline.
func (v *Verifier) signature(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, val := range values[key] {
			lines = append(lines, key+"="+val)
		}
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseUser(userJSON string) (Identity, error) {
	var user struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Username  string `json:"username"`
		PhotoURL  string `json:"photo_url"`
	}
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return Identity{}, fmt.Errorf("%w: user is not valid JSON", ErrMalformed)
	}
	if user.ID == 0 {
		return Identity{}, fmt.Errorf("%w: user has no numeric id", ErrMalformed)
	}

	return Identity{
		TelegramUserID: user.ID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Username:       user.Username,
		AvatarURL:      user.PhotoURL,
	}, nil
}
