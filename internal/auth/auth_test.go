package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campus-queue/internal/apperror"
	"campus-queue/internal/config"
	"campus-queue/internal/models"
	"campus-queue/internal/store/memory"
)

type staticRoles map[string]string

func (r staticRoles) Role(_ context.Context, uid string) (string, error) {
	if role, ok := r[uid]; ok {
		return role, nil
	}
	return models.RoleStudent, nil
}

func TestJWTAuthenticate(t *testing.T) {
	ctx := context.Background()
	j := NewJWT("secret", time.Hour)

	token, err := j.Issue(models.Account{UID: "u1", Email: "a@mite.ac.in", EmailVerified: true}, models.RoleCashier)
	require.NoError(t, err)

	id, err := j.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "u1", id.UID)
	require.Equal(t, "a@mite.ac.in", id.Email)
	require.True(t, id.EmailVerified)

	_, err = j.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrMissingCredential)

	_, err = j.Authenticate(ctx, token+"x")
	require.ErrorIs(t, err, ErrInvalidCredential)

	other := NewJWT("another-secret", time.Hour)
	_, err = other.Authenticate(ctx, token)
	require.ErrorIs(t, err, ErrInvalidCredential)
	require.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))
}

func TestJWTAuthenticateRejectsMissingUID(t *testing.T) {
	token, err := config.GenerateToken("secret", time.Hour, "", "a@mite.ac.in", true, "", time.Now())
	require.NoError(t, err)

	_, err = NewJWT("secret", time.Hour).Authenticate(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	accounts := memory.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	accounts.PutAccount(models.Account{UID: "u1", Email: "cashier@mite.ac.in", PasswordHash: string(hash), EmailVerified: true})

	issuer := NewJWT("secret", time.Hour)
	svc := NewLoginService(accounts, staticRoles{"u1": models.RoleCashier}, issuer, nil)

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Login(ctx, models.LoginRequest{Email: " Cashier@MITE.ac.in", Password: "hunter22"})
		require.NoError(t, err)
		require.Equal(t, models.UserResponse{UID: "u1", Email: "cashier@mite.ac.in", Role: models.RoleCashier}, resp.User)

		id, err := issuer.Authenticate(ctx, resp.Token)
		require.NoError(t, err)
		require.Equal(t, "u1", id.UID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "cashier@mite.ac.in", Password: "nope"})
		require.ErrorIs(t, err, ErrBadLogin)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "ghost@mite.ac.in", Password: "hunter22"})
		require.ErrorIs(t, err, ErrBadLogin)
	})

	t.Run("MissingFields", func(t *testing.T) {
		_, err := svc.Login(ctx, models.LoginRequest{Email: "cashier@mite.ac.in"})
		require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}
