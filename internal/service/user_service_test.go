package service

import (
	"bookstore-service/internal/config"
	"bookstore-service/internal/entity"
	"bookstore-service/internal/repository"
	"context"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func newTestUserService(t *testing.T) *UserService {
	s := newSQLStack(t)
	return NewUserService(repository.NewUserRepository(s.db), config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	userID, err := svc.Register(ctx, "Ada", "ada@example.com", "s3cret")
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleCustomer, user.Role)
	assert.Equal(t, entity.UserStatusActive, user.Status)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	result, err := svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "Ada", result.User.Name)

	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(result.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, entity.RoleCustomer, claims.Role)
}

func TestRegisterErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	_, err := svc.Register(ctx, "", "x@example.com", "pw")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Register(ctx, "X", "not-an-email", "pw")
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Register(ctx, "X", "x@example.com", "pw")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Y", "x@example.com", "pw2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)
	_, err := svc.Register(ctx, "Bo", "bo@example.com", "right")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "bo@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)
	userID, err := svc.Register(ctx, "Cy", "cy@example.com", "old-pass")
	require.NoError(t, err)

	password := "new-pass"
	_, err = svc.UpdateUser(ctx, userID, &entity.UserPatch{Password: &password})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "cy@example.com", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "cy@example.com", "new-pass")
	assert.NoError(t, err)

	_, err = svc.UpdateUser(ctx, userID, &entity.UserPatch{})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	name := "Cyrus"
	_, err = svc.UpdateUser(ctx, userID+1, &entity.UserPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Register(ctx, "Di", "di@example.com", "pw")
	require.NoError(t, err)
	taken := "di@example.com"
	_, err = svc.UpdateUser(ctx, userID, &entity.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreateAndDeleteUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)

	user, err := svc.CreateUser(ctx, &NewUser{Name: "Ed", Email: "ed@example.com", Password: "pw", Role: entity.RoleSeller})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSeller, user.Role)

	_, err = svc.CreateUser(ctx, &NewUser{Name: "Fay", Email: "fay@example.com", Password: "pw", Role: "KING"})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.DeleteUser(ctx, user.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, user.ID), ErrNotFound)
	_, err = svc.GetUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPasswordLongerThanBcryptLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestUserService(t)
	long := strings.Repeat("p", 73)

	_, err := svc.Register(ctx, "Gil", "gil@example.com", long)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	userID, err := svc.Register(ctx, "Gil", "gil@example.com", strings.Repeat("p", 72))
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, userID, &entity.UserPatch{Password: &long})
	assert.ErrorAs(t, err, &validationErr)
}
