// Package reset implements stateless password-reset tokens.
//
// A token is a keyed hash over the parts of the user record that change
// when the token must die: the password hash, the last-login timestamp,
// and the active flag. There is no token table; validity is re-derived
// against current user state at redemption time, so any password change
// or login silently invalidates every outstanding token.
package reset

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const keySalt = "authcore.reset.Generator"

// tokenEpoch anchors the timestamp encoded into tokens. Seconds since
// this instant fit comfortably in base36.
var tokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// State is the snapshot of user fields a token is bound to. LastLogin is
// truncated to whole seconds before hashing so storage backends that
// round sub-second precision do not invalidate tokens on read-back.
type State struct {
	UserID       string
	PasswordHash string
	LastLogin    *time.Time
	IsActive     bool
}

// Generator makes and checks reset tokens. The zero value is unusable;
// construct with [NewGenerator].
type Generator struct {
	key []byte
	ttl time.Duration

	now func() time.Time
}

// NewGenerator derives the signing key from secret and returns a
// generator whose tokens expire ttl after issuance.
func NewGenerator(secret []byte, ttl time.Duration) (*Generator, error) {
	if len(secret) == 0 {
		return nil, errors.New("reset: secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("reset: ttl must be > 0")
	}

	derived := sha256.Sum256(append([]byte(keySalt), secret...))

	return &Generator{
		key: derived[:],
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Make issues a token for the given user state.
func (g *Generator) Make(st State) string {
	return g.makeAt(st, g.secondsNow())
}

// Check reports whether token was issued for st, is untampered, and has
// not outlived the TTL. The comparison is constant-time.
func (g *Generator) Check(st State, token string) bool {
	if token == "" {
		return false
	}

	tsPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	expected := g.makeAt(st, ts)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) != 1 {
		return false
	}

	return g.secondsNow()-ts <= int64(g.ttl/time.Second)
}

// EncodeUID turns a user ID into the opaque uid component of a reset
// link.
func EncodeUID(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// DecodeUID reverses [EncodeUID].
func DecodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", errors.New("reset: invalid uid encoding")
	}
	return string(raw), nil
}

func (g *Generator) makeAt(st State, ts int64) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(hashValue(st, ts)))
	digest := hex.EncodeToString(mac.Sum(nil))

	// Keep every second hex character. Halves the token length while
	// leaving 128 bits of the MAC in play.
	short := make([]byte, 0, len(digest)/2)
	for i := 0; i < len(digest); i += 2 {
		short = append(short, digest[i])
	}

	return strconv.FormatInt(ts, 36) + "-" + string(short)
}

func hashValue(st State, ts int64) string {
	login := ""
	if st.LastLogin != nil {
		login = st.LastLogin.UTC().Truncate(time.Second).Format(time.RFC3339)
	}

	return st.UserID +
		strconv.FormatInt(ts, 10) +
		st.PasswordHash +
		login +
		strconv.FormatBool(st.IsActive)
}

func (g *Generator) secondsNow() int64 {
	return int64(g.now().UTC().Sub(tokenEpoch) / time.Second)
}
