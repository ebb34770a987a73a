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

	"github.com/noah-isme/college-portal-api/internal/models"
	appErrors "github.com/noah-isme/college-portal-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]*models.User
	emailIndex    map[string]string
	tokens        map[string]*models.RefreshToken
	auditLogs     []models.AuditLog
	revokedAll    []string
	passwordSet   map[string]string
	lastLoginSet  []string
	revokedTokens []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:       make(map[string]*models.User),
		emailIndex:  make(map[string]string),
		tokens:      make(map[string]*models.RefreshToken),
		passwordSet: make(map[string]string),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.emailIndex[email]; ok {
		cp := *m.users[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.emailIndex[email]
	return ok, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	m.addUser(&cp)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = append(m.lastLoginSet, id)
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordSet[id] = passwordHash
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.tokens[token.Token] = &cp
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedTokens = append(m.revokedTokens, id)
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "college-portal-api",
		Audience:           []string{"college-portal"},
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := service.Register(context.Background(), RegisterRequest{
		Email:     "Ada@Example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      models.RoleStaff,
		Password:  "secret123",
		Password2: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.True(t, resp.User.IsStaff)

	claims, err := service.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, claims.Role)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestAuthServiceRegisterPasswordMismatch(t *testing.T) {
	service := NewAuthService(newMockAuthRepo(), validator.New(), zap.NewNop(), testAuthConfig())

	_, err := service.Register(context.Background(), RegisterRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      models.RoleStudent,
		Password:  "secret123",
		Password2: "different",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "didn't match")
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ada@example.com"})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := service.Register(context.Background(), RegisterRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      models.RoleStudent,
		Password:  "secret123",
		Password2: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleAdmin,
		IsActive:     true,
		IsStaff:      true,
	})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, []string{"u1"}, repo.lastLoginSet)
	assert.Len(t, repo.tokens, 1)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		IsActive:     true,
	})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		IsActive:     false,
	})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "ada@example.com", IsActive: true})
	repo.tokens["old-token"] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Equal(t, []string{"rt1"}, repo.revokedTokens)
	assert.True(t, repo.tokens["old-token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo()
	repo.tokens["old-token"] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := service.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutOwnershipCheck(t *testing.T) {
	repo := newMockAuthRepo()
	repo.tokens["tok"] = &models.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		Token:     "tok",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := service.Logout(context.Background(), "tok", "someone-else", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, service.Logout(context.Background(), "tok", "u1", models.LoginRequest{}))
	assert.Equal(t, []string{"rt1"}, repo.revokedTokens)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		IsActive:     true,
	})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := service.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "brand-new-pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	err = service.ChangePassword(context.Background(), "u1", ChangePasswordRequest{
		CurrentPassword: "secret123",
		NewPassword:     "brand-new-pass",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.passwordSet, "u1")
	assert.Equal(t, []string{"u1"}, repo.revokedAll)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockAuthRepo()
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := service.Register(context.Background(), RegisterRequest{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      models.RoleStudent,
		Password:  "secret123",
		Password2: "secret123",
	})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Minute,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

type mockProfileStudents struct {
	byUser map[string]*models.StudentDetail
}

func (m *mockProfileStudents) FindByUserID(_ context.Context, userID string) (*models.StudentDetail, error) {
	if d, ok := m.byUser[userID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockProfileStaff struct {
	byUser map[string]*models.StaffDetail
}

func (m *mockProfileStaff) FindByUserID(_ context.Context, userID string) (*models.StaffDetail, error) {
	if d, ok := m.byUser[userID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func TestAuthServiceProfileAttachesStudent(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{
		ID:        "u1",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      models.RoleStudent,
		IsActive:  true,
	})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())
	service.UseProfileSources(&mockProfileStudents{byUser: map[string]*models.StudentDetail{
		"u1": {Student: models.Student{UserID: "u1", StudentID: "STU001"}},
	}}, &mockProfileStaff{})

	profile, err := service.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.User.FirstName)
	assert.Equal(t, models.RoleStudent, profile.User.Role)
	require.NotNil(t, profile.Student)
	assert.Equal(t, "STU001", profile.Student.StudentID)
	assert.Nil(t, profile.Staff)
}

func TestAuthServiceProfileWithoutProfileRow(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u2", Email: "bob@example.com", Role: models.RoleStaff, IsStaff: true})
	service := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())
	service.UseProfileSources(&mockProfileStudents{}, &mockProfileStaff{})

	profile, err := service.Profile(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, profile.User.IsStaff)
	assert.Nil(t, profile.Student)
	assert.Nil(t, profile.Staff)

	_, err = service.Profile(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
