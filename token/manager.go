package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by authcore APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodHS256 is an exported constant or variable used by the authentication engine.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 is an exported constant or variable used by the authentication engine.
	MethodEd25519 SigningMethod = "ed25519"
)

// Token kinds. Every issued token carries exactly one.
const (
	// KindAccess is an exported constant or variable used by the authentication engine.
	KindAccess = "access"
	// KindRefresh is an exported constant or variable used by the authentication engine.
	KindRefresh = "refresh"
)

var (
	// ErrExpired is an exported constant or variable used by the authentication engine.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is an exported constant or variable used by the authentication engine.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongKind is an exported constant or variable used by the authentication engine.
	ErrWrongKind = errors.New("token kind mismatch")
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

// Manager issues and parses signed access/refresh token pairs.
type Manager struct {
	config Config
}

// Subject is the identity snapshot baked into a token pair at issuance.
// Roles is fixed until the pair rotates; callers needing live role state
// must resolve it separately.
type Subject struct {
	UserID    string
	TenantID  string
	Handle    string
	Email     string
	FirstName string
	LastName  string
	Roles     []string
}

// Claims is the decoded JWT payload. Subject (RegisteredClaims.Subject)
// carries the user ID, ID the jti used by the revocation list.
type Claims struct {
	TenantID  string   `json:"tid,omitempty"`
	Handle    string   `json:"handle,omitempty"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"given_name,omitempty"`
	LastName  string   `json:"family_name,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Kind      string   `json:"kind"`
	jwt.RegisteredClaims
}

// Pair is the result of [Manager.IssuePair].
type Pair struct {
	Access     string
	Refresh    string
	AccessJTI  string
	RefreshJTI string
	AccessExp  time.Time
	RefreshExp time.Time
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// IssuePair signs a fresh access/refresh pair for sub. Both tokens share
// the identity claims; they differ in kind, jti, and lifetime.
func (m *Manager) IssuePair(sub Subject) (*Pair, error) {
	now := time.Now()
	accessExp := now.Add(m.config.AccessTTL)
	refreshExp := now.Add(m.config.RefreshTTL)

	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	access, err := m.sign(sub, KindAccess, accessJTI, now, accessExp)
	if err != nil {
		return nil, err
	}

	refresh, err := m.sign(sub, KindRefresh, refreshJTI, now, refreshExp)
	if err != nil {
		return nil, err
	}

	return &Pair{
		Access:     access,
		Refresh:    refresh,
		AccessJTI:  accessJTI,
		RefreshJTI: refreshJTI,
		AccessExp:  accessExp,
		RefreshExp: refreshExp,
	}, nil
}

// Parse verifies the signature and registered claims, then checks that
// the token is of the expected kind. Expiry maps to [ErrExpired], every
// other verification failure to [ErrMalformed], and a valid token of the
// other kind to [ErrWrongKind].
func (m *Manager) Parse(tokenStr, kind string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}

	return claims, nil
}

func (m *Manager) sign(sub Subject, kind, jti string, now, exp time.Time) (string, error) {
	claims := Claims{
		TenantID:  sub.TenantID,
		Handle:    sub.Handle,
		Email:     sub.Email,
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Roles:     sub.Roles,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}

	return jwt.NewWithClaims(m.method(), claims).SignedString(key)
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
