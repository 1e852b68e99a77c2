package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"officehours/backend/internal/domain"
	"officehours/backend/internal/security"
)

func newAuthService(users *MockUserRepository) *AuthService {
	jwt := security.NewJWTManager("test-secret-key-with-32-chars!!", 15*time.Minute, 7*24*time.Hour)
	return NewAuthService(users, jwt)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	users := new(MockUserRepository)
	svc := newAuthService(users)

	users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, domain.ErrNotFound).Once()

	var created *domain.User
	users.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).Return(nil)

	user, pair, err := svc.Register(context.Background(), domain.UserCreate{
		Name:     "Ada",
		Email:    "new@example.com",
		Password: "a long enough password",
		Role:     "student",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, "a long enough password", user.PasswordHash)

	// Stored hash verifies the original password
	users.On("GetByEmail", mock.Anything, "new@example.com").Return(created, nil)

	_, pair, err = svc.Login(context.Background(), domain.UserLogin{
		Email:    "new@example.com",
		Password: "a long enough password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestAuthService_LoginWrongPassword(t *testing.T) {
	users := new(MockUserRepository)
	svc := newAuthService(users)

	hash, err := security.HashPassword("right password")
	require.NoError(t, err)

	users.On("GetByEmail", mock.Anything, "user@example.com").
		Return(&domain.User{Email: "user@example.com", PasswordHash: hash}, nil)

	_, _, err = svc.Login(context.Background(), domain.UserLogin{
		Email:    "user@example.com",
		Password: "wrong password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginUnknownEmail(t *testing.T) {
	users := new(MockUserRepository)
	svc := newAuthService(users)

	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	_, _, err := svc.Login(context.Background(), domain.UserLogin{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	users := new(MockUserRepository)
	svc := newAuthService(users)

	users.On("GetByEmail", mock.Anything, "taken@example.com").
		Return(&domain.User{Email: "taken@example.com"}, nil)

	_, _, err := svc.Register(context.Background(), domain.UserCreate{
		Name:     "Bob",
		Email:    "taken@example.com",
		Password: "a long enough password",
		Role:     "teacher",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}
