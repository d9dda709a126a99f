package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegistration(t *testing.T) {
	valid := dto.RegisterRequest{Email: "jane@example.com", Password: "longenough", FullName: "Jane Roe", Role: "patient"}
	require.NoError(t, validateRegistration(&valid))

	tests := map[string]func(r *dto.RegisterRequest){
		"email":    func(r *dto.RegisterRequest) { r.Email = "jane" },
		"password": func(r *dto.RegisterRequest) { r.Password = "short" },
		"name":     func(r *dto.RegisterRequest) { r.FullName = "  " },
		"role":     func(r *dto.RegisterRequest) { r.Role = "admin" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			assert.ErrorIs(t, validateRegistration(&req), ErrInvalidRegistration)
		})
	}
}

func TestIssueAccessToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret", JWTAccessExpiry: 30 * time.Minute}
	svc := NewAuthService(nil, cfg, nil)
	fixed := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return fixed }

	raw, err := svc.IssueAccessToken(&models.User{ID: 42, Email: "house@example.com", Role: models.RoleDoctor})
	require.NoError(t, err)

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)

	assert.Equal(t, strconv.Itoa(42), claims["sub"])
	assert.Equal(t, "doctor", claims["role"])
	assert.Equal(t, "house@example.com", claims["email"])
	assert.Equal(t, float64(fixed.Add(30*time.Minute).Unix()), claims["exp"])
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, hashToken("abc"), hashToken("abc"))
	assert.NotEqual(t, hashToken("abc"), hashToken("abd"))
	assert.Len(t, hashToken("abc"), 64)
}

func TestUserResponseOmitsPassword(t *testing.T) {
	resp := UserResponse(&models.User{ID: 1, Email: "a@example.com", Password: "hash", FullName: "A", Role: "patient", IsActive: true})
	assert.Equal(t, uint(1), resp.ID)
	assert.Equal(t, "A", resp.FullName)
	assert.True(t, resp.IsActive)
}
