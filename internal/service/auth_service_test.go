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

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type mockAuthUserRepo struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *mockAuthUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

type mockAuthSchoolRepo struct {
	school *models.School
}

func (m *mockAuthSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.school == nil {
		return nil, sql.ErrNoRows
	}
	return m.school, nil
}

func newAuthServiceForTest(users *mockAuthUserRepo, schools *mockAuthSchoolRepo) *AuthService {
	return NewAuthService(users, schools, validator.New(), zap.NewNop(), AuthConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "vidyalaya-api",
	})
}

func hashFor(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, schoolID string) *models.User {
	user := &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: hashFor(t, "password"),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if schoolID != "" {
		user.SchoolID = &schoolID
	}
	return user
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "school-1")}
	schools := &mockAuthSchoolRepo{school: &models.School{ID: "school-1", IsActive: true}}
	svc := newAuthServiceForTest(users, schools)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "user-1", res.User.ID)
	assert.True(t, users.lastLoginUpdated)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuspendedSchool(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "school-1")}
	schools := &mockAuthSchoolRepo{school: &models.School{ID: "school-1", IsActive: false}}
	svc := newAuthServiceForTest(users, schools)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSchoolSuspended.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginDeveloperBypassesSchoolCheck(t *testing.T) {
	user := activeUser(t, "school-1")
	user.Role = models.RoleDeveloper
	users := &mockAuthUserRepo{user: user}
	// The school repo returns nothing, which would fail any scoped login.
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "")
	user.Active = false
	svc := newAuthServiceForTest(&mockAuthUserRepo{user: user}, &mockAuthSchoolRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefresh(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	refresh, err := svc.generateToken(users.user, tokenUseRefresh, time.Hour)
	require.NoError(t, err)

	res, err := svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	access, err := svc.generateToken(users.user, tokenUseAccess, time.Hour)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), access)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsRefreshToken(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	refresh, err := svc.generateToken(users.user, tokenUseRefresh, time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(refresh)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "school-1")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	access, err := svc.generateToken(users.user, tokenUseAccess, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "school-1", claims.SchoolID)
}

func TestAuthServiceValidateExpiredToken(t *testing.T) {
	users := &mockAuthUserRepo{user: activeUser(t, "")}
	svc := newAuthServiceForTest(users, &mockAuthSchoolRepo{})

	expired, err := svc.generateToken(users.user, tokenUseAccess, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(expired)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
