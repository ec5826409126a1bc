package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager("test-secret", 30*time.Minute, zap.NewNop())
	require.NoError(t, m.SeedUser("trader1", "trader123", RoleTrader))
	return m
}

func TestRoleHierarchy(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		allowed  bool
	}{
		{RoleTrader, RoleTrader, true},
		{RoleTrader, RoleRiskManager, false},
		{RoleTrader, RoleCompliance, false},
		{RoleRiskManager, RoleTrader, true},
		{RoleRiskManager, RoleCompliance, false},
		{RoleCompliance, RoleRiskManager, true},
		{RoleCompliance, RoleAdmin, false},
		{RoleAdmin, RoleTrader, true},
		{RoleAdmin, RoleCompliance, true},
		{RoleAdmin, RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.required), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.role.AtLeast(tt.required))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("RISK_MANAGER")
	require.NoError(t, err)
	assert.Equal(t, RoleRiskManager, role)

	_, err = ParseRole("SUPERUSER")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestSeedUserRejectsDuplicates(t *testing.T) {
	m := newTestManager(t)
	err := m.SeedUser("trader1", "other", RoleAdmin)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestAuthenticateAndVerify(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Authenticate("trader1", "trader123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int((30 * time.Minute).Seconds()), token.ExpiresIn)
	assert.NotEmpty(t, token.AccessToken)

	claims, err := m.VerifyToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "trader1", claims.Username)
	assert.Equal(t, RoleTrader, claims.Role)
	assert.NotEmpty(t, claims.UserID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Authenticate("trader1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = m.Authenticate("nobody", "trader123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenGarbage(t *testing.T) {
	m := newTestManager(t)

	_, err := m.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other := NewManager("another-secret", 30*time.Minute, zap.NewNop())

	token, err := m.Authenticate("trader1", "trader123")
	require.NoError(t, err)

	_, err = other.VerifyToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenExpired(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Authenticate("trader1", "trader123")
	require.NoError(t, err)

	// Move the verifier's clock past the expiry.
	m.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err = m.VerifyToken(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
