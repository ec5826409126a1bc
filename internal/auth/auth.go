// Package auth holds the user registry, the role hierarchy, and JWT
// minting and verification for the gateway's control surface.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantarc/ordergate/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserExists         = errors.New("username already registered")
	ErrUnknownRole        = errors.New("unknown role")
)

// Role is a level in the totally ordered access hierarchy.
type Role string

const (
	RoleTrader      Role = "TRADER"
	RoleRiskManager Role = "RISK_MANAGER"
	RoleCompliance  Role = "COMPLIANCE"
	RoleAdmin       Role = "ADMIN"
)

var roleLevels = map[Role]int{
	RoleTrader:      1,
	RoleRiskManager: 2,
	RoleCompliance:  3,
	RoleAdmin:       4,
}

// ParseRole validates a role string from configuration or a token.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleLevels[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// AtLeast reports whether the role's level meets the required level.
func (r Role) AtLeast(required Role) bool {
	return roleLevels[r] >= roleLevels[required]
}

// User is a registry entry. PasswordHash is argon2id encoded; the clear
// password never leaves the login handler.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
}

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	Username string
	UserID   string
	Role     Role
}

// TokenResponse is the login response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Manager authenticates users and mints HS256 bearer tokens.
type Manager struct {
	mu     sync.RWMutex
	users  map[string]*User
	secret []byte
	expiry time.Duration
	hasher *security.Hasher
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates an empty registry signing tokens with secret.
func NewManager(secret string, expiry time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		users:  make(map[string]*User),
		secret: []byte(secret),
		expiry: expiry,
		hasher: security.NewHasher(),
		logger: logger,
		now:    time.Now,
	}
}

// SeedUser registers a user with a clear-text password, hashing it
// before storage. Intended for startup seeding from configuration.
func (m *Manager) SeedUser(username, password string, role Role) error {
	if _, ok := roleLevels[role]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return ErrUserExists
	}
	m.users[username] = &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	m.logger.Info("user registered",
		zap.String("username", username),
		zap.String("role", string(role)),
	)
	return nil
}

// Authenticate checks the credentials and mints a bearer token.
func (m *Manager) Authenticate(username, password string) (*TokenResponse, error) {
	m.mu.RLock()
	user, ok := m.users[username]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	match, err := m.hasher.Verify(password, user.PasswordHash)
	if err != nil || !match {
		m.logger.Warn("failed login attempt", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     user.Username,
		"user_id": user.ID,
		"role":    string(user.Role),
		"exp":     now.Add(m.expiry).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(m.expiry.Seconds()),
	}, nil
}

// VerifyToken validates a bearer token and extracts its claims.
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	username, _ := claims["sub"].(string)
	userID, _ := claims["user_id"].(string)
	roleStr, _ := claims["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil || username == "" || userID == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{Username: username, UserID: userID, Role: role}, nil
}
