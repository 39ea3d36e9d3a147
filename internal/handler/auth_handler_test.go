package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidyalaya/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
)

type userRepoMock struct {
	user *models.User
}

func (m *userRepoMock) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *userRepoMock) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *userRepoMock) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

type schoolRepoMock struct {
	school *models.School
}

func (m *schoolRepoMock) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.school == nil {
		return nil, sql.ErrNoRows
	}
	return m.school, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newAuthHandlerForTest(t *testing.T, users *userRepoMock, schools *schoolRepoMock) *AuthHandler {
	t.Helper()
	auth := service.NewAuthService(users, schools, validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "vidyalaya-api",
	})
	return NewAuthHandler(auth)
}

func testUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	schoolID := "school-1"
	return &models.User{
		ID:           "user-1",
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		FullName:     "Admin",
		Role:         models.RoleAdmin,
		SchoolID:     &schoolID,
		Active:       true,
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := &userRepoMock{user: testUser(t)}
	schools := &schoolRepoMock{school: &models.School{ID: "school-1", IsActive: true}}
	handler := newAuthHandlerForTest(t, users, schools)

	payload, _ := json.Marshal(models.LoginRequest{Email: "admin@example.com", Password: "password"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	require.Equal(t, "user-1", envelope.Data.User.ID)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := &userRepoMock{user: testUser(t)}
	schools := &schoolRepoMock{school: &models.School{ID: "school-1", IsActive: true}}
	handler := newAuthHandlerForTest(t, users, schools)

	payload, _ := json.Marshal(models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginMalformedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerForTest(t, &userRepoMock{}, &schoolRepoMock{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte("{"))

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRefreshInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerForTest(t, &userRepoMock{}, &schoolRepoMock{})

	payload, _ := json.Marshal(map[string]string{"refresh_token": "not-a-token"})
	c, w := newGinContext(http.MethodPost, "/auth/refresh", payload)

	handler.Refresh(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerForTest(t, &userRepoMock{}, &schoolRepoMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:   "user-1",
		Email:    "admin@example.com",
		Role:     models.RoleAdmin,
		SchoolID: "school-1",
	})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "user-1", envelope.Data.ID)
	require.NotNil(t, envelope.Data.SchoolID)
	require.Equal(t, "school-1", *envelope.Data.SchoolID)
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandlerForTest(t, &userRepoMock{}, &schoolRepoMock{})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
