package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Claims for host reconnect tokens.
type Claims struct {
	SessionCode string `json:"session_code"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongSession = errors.New("token was issued for another session")
)

// TokenConfig holds JWT signing configuration.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration // default: 24 hours
	Issuer string
	Clock  clockwork.Clock
}

// Manager issues and checks the tokens that prove a connection is the host of a session.
// A Manager without a secret is disabled: it issues empty tokens and accepts any.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clockwork.Clock
}

// NewManager creates a host token manager.
func NewManager(cfg TokenConfig) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "live-quiz"
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  cfg.Clock,
	}
}

// Enabled reports whether tokens are issued and enforced.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.secret) > 0
}

// Issue creates a token bound to the session code.
func (m *Manager) Issue(code string) (string, error) {
	if !m.Enabled() {
		return "", nil
	}

	now := m.clock.Now()
	claims := Claims{
		SessionCode: strings.ToUpper(code),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   "host",
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks that tokenString is a valid host token for code.
func (m *Manager) Verify(tokenString, code string) error {
	if !m.Enabled() {
		return nil
	}

	claims, err := m.parse(tokenString)
	if err != nil {
		return err
	}
	if !strings.EqualFold(claims.SessionCode, code) {
		return ErrWrongSession
	}
	return nil
}

func (m *Manager) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.clock.Now), jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
