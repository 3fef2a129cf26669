package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

var authMeta = models.RequestMeta{IP: "10.0.0.5", UserAgent: "studio-web"}

func TestAuthServiceLoginIssuesSessionPair(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleReviewer, true)
	svc := newAuthServiceForTest(repo, AuthConfig{})

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mara@lindenworks.com",
		Password: "password",
	}, authMeta)
	require.NoError(t, err)

	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleReviewer, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	session := repo.sessions[res.RefreshToken]
	require.NotNil(t, session)
	assert.Equal(t, "studio-web", session.UserAgent)

	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
	assert.Equal(t, "10.0.0.5", repo.auditLogs[0].IPAddress)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleReviewer, true)
	svc := newAuthServiceForTest(repo, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mara@lindenworks.com",
		Password: "wrong",
	}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "stranger@elsewhere.com",
		Password: "password",
	}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "former@lindenworks.com", "password", models.RoleReviewer, false)
	svc := newAuthServiceForTest(repo, AuthConfig{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "former@lindenworks.com",
		Password: "password",
	}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceSingleSessionRevokesPriorTokens(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleAdmin, true)
	svc := newAuthServiceForTest(repo, AuthConfig{SingleSession: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "mara@lindenworks.com",
		Password: "password",
	}, authMeta)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1"}, repo.revokedUsers)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleReviewer, true)
	repo.seedSession("rt-1", "u-1", "old-token", time.Now().Add(time.Hour))
	svc := newAuthServiceForTest(repo, AuthConfig{})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"}, authMeta)
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", res.RefreshToken)
	assert.True(t, repo.sessions["old-token"].Revoked, "presented token is revoked")

	// Replaying the revoked token must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleReviewer, true)
	repo.seedSession("rt-1", "u-1", "stale", time.Now().Add(-time.Minute))
	svc := newAuthServiceForTest(repo, AuthConfig{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "password", models.RoleReviewer, true)
	repo.seedSession("rt-1", "u-1", "current", time.Now().Add(time.Hour))
	svc := newAuthServiceForTest(repo, AuthConfig{})

	require.NoError(t, svc.Logout(context.Background(), "current", "u-1", authMeta))
	assert.True(t, repo.sessions["current"].Revoked)

	repo.seedSession("rt-2", "u-2", "other", time.Now().Add(time.Hour))
	err := svc.Logout(context.Background(), "other", "u-1", authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newAuthRepoStub()
	repo.addUser("u-1", "mara@lindenworks.com", "old-password", models.RoleReviewer, true)
	oldHash := repo.usersByID["u-1"].PasswordHash
	svc := newAuthServiceForTest(repo, AuthConfig{})

	err := svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "fresh-password",
	}, authMeta)
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.usersByID["u-1"].PasswordHash)
	assert.Equal(t, []string{"u-1"}, repo.revokedUsers, "other sessions are signed out")

	err = svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "another",
	}, authMeta)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	repo := newAuthRepoStub()
	svc := newAuthServiceForTest(repo, AuthConfig{})
	user := &models.User{ID: "u-1", Email: "svc@lindenworks.com", Role: models.RoleService}

	token, _, err := svc.mintAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleService, claims.Role)

	_, err = svc.ValidateToken(token + "tampered")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func newAuthServiceForTest(repo *authRepoStub, cfg AuthConfig) *AuthService {
	if cfg.AccessTokenSecret == "" {
		cfg.AccessTokenSecret = "test-secret"
	}
	if cfg.AccessTokenExpiry <= 0 {
		cfg.AccessTokenExpiry = time.Hour
	}
	if cfg.RefreshTokenExpiry <= 0 {
		cfg.RefreshTokenExpiry = 24 * time.Hour
	}
	return NewAuthService(repo, validator.New(), zap.NewNop(), cfg)
}

type authRepoStub struct {
	usersByEmail     map[string]*models.User
	usersByID        map[string]*models.User
	sessions         map[string]*models.RefreshToken
	revokedUsers     []string
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		sessions:     map[string]*models.RefreshToken{},
	}
}

func (m *authRepoStub) addUser(id, email, password string, role models.UserRole, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{ID: id, Email: email, PasswordHash: string(hash), Role: role, Active: active}
	m.usersByEmail[email] = user
	m.usersByID[id] = user
}

func (m *authRepoStub) seedSession(id, userID, token string, expiresAt time.Time) {
	m.sessions[token] = &models.RefreshToken{ID: id, UserID: userID, Token: token, ExpiresAt: expiresAt}
}

func (m *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if user, ok := m.usersByID[id]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.sessions[token.Token] = token
	return nil
}

func (m *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	session, ok := m.sessions[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, session := range m.sessions {
		if session.ID == id {
			session.Revoked = true
			session.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}
