package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/dto"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/store"
	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	svc    *AuthService
	users  *store.MemoryUsers
	ledger *store.MemoryTokens
	codec  *token.Codec
}

func newCodec(t *testing.T, now func() time.Time) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Now:           now,
	})
	require.NoError(t, err)
	return codec
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  store.NewMemoryUsers(),
		ledger: store.NewMemoryTokens(),
		codec:  newCodec(t, nil),
	}
	f.svc = NewAuthService(f.users, f.ledger, f.codec, WithPasswordCost(bcrypt.MinCost))
	return f
}

func amy() *dto.RegisterRequest {
	return &dto.RegisterRequest{Username: "amy", Email: "a@x.com", Password: "pw123456", Role: "student"}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)
	assert.Equal(t, "amy", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw123456", stored.Password)

	session, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	claims, err := f.codec.Verify(session.AccessToken, token.Access)
	require.NoError(t, err)
	assert.Equal(t, token.Subject{ID: user.ID, Role: models.RoleStudent}, claims.Identity())

	_, err = f.codec.Verify(session.RefreshToken, token.Refresh)
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestRegister_DefaultRoleAndNormalizedEmail(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.svc.Register(context.Background(), &dto.RegisterRequest{
		Username: "bo", Email: "  Bo@X.com ", Password: "longenough",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "bo@x.com", user.Email)
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)
	cases := map[string]*dto.RegisterRequest{
		"missing username": {Email: "a@x.com", Password: "pw123456"},
		"missing email":    {Username: "amy", Password: "pw123456"},
		"bad email":        {Username: "amy", Email: "not-an-email", Password: "pw123456"},
		"short password":   {Username: "amy", Email: "a@x.com", Password: "short"},
		"unknown role":     {Username: "amy", Email: "a@x.com", Password: "pw123456", Role: "admin"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), req)
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, amy())
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegister_ConcurrentDuplicateYieldsOneUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(ctx, amy())
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

// raceUsers hides existing users from the pre-check so only the store's
// uniqueness guard can reject the duplicate.
type raceUsers struct {
	*store.MemoryUsers
}

func (r raceUsers) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func TestRegister_StorageConstraintIsAuthoritative(t *testing.T) {
	users := raceUsers{store.NewMemoryUsers()}
	svc := NewAuthService(users, store.NewMemoryTokens(), newCodec(t, nil), WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()

	_, err := svc.Register(ctx, amy())
	require.NoError(t, err)

	_, err = svc.Register(ctx, amy())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_NoEmailOracle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "nope-nope"})
	_, unknownEmail := f.svc.Login(ctx, &dto.LoginRequest{Email: "z@x.com", Password: "pw123456"})

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, PublicMessage(wrongPassword), PublicMessage(unknownEmail))
	assert.Equal(t, 0, f.ledger.Len())
}

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	access, err := f.svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.AccessToken, access)

	_, err = f.codec.Verify(access, token.Access)
	assert.NoError(t, err)

	// not rotated: the same refresh token keeps working
	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_MissingToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenRequired)
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestRefresh_AfterLogoutIsRejected(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.RefreshToken))

	_, err = f.svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_ExpiredTokenIsPurgedFromLedger(t *testing.T) {
	past := time.Now().Add(-8 * 24 * time.Hour)
	oldCodec := newCodec(t, func() time.Time { return past })
	f := newAuthFixture(t)
	ctx := context.Background()

	expired, err := oldCodec.SignRefresh(token.Subject{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Store(ctx, expired, 1))

	_, err = f.svc.Refresh(ctx, expired)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = f.ledger.Find(ctx, expired)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefresh_AccessTokenIsNotARefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestConcurrentLogins_IndependentSessions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)

	sessions := make([]*Session, 2)
	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()
	require.NotNil(t, sessions[0])
	require.NotNil(t, sessions[1])

	assert.NotEqual(t, sessions[0].RefreshToken, sessions[1].RefreshToken)
	assert.Equal(t, 2, f.ledger.Len())

	require.NoError(t, f.svc.Logout(ctx, sessions[0].RefreshToken))

	_, err = f.svc.Refresh(ctx, sessions[0].RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.svc.Refresh(ctx, sessions[1].RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_Twice(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.RefreshToken))

	err = f.svc.Logout(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.svc.Logout(ctx, ""), ErrTokenRequired)
}

type brokenLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (brokenLedger) Store(context.Context, string, uint) error { return errLedgerDown }
func (brokenLedger) Find(context.Context, string) (*models.RefreshToken, error) {
	return nil, errLedgerDown
}
func (brokenLedger) Delete(context.Context, string) (int64, error) { return 0, errLedgerDown }

func TestStorageFailuresAreInternal(t *testing.T) {
	users := store.NewMemoryUsers()
	codec := newCodec(t, nil)
	svc := NewAuthService(users, brokenLedger{}, codec, WithPasswordCost(bcrypt.MinCost))
	ctx := context.Background()

	_, err := svc.Register(ctx, amy())
	require.NoError(t, err)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "a@x.com", Password: "pw123456"})
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "login failed", PublicMessage(err))

	refresh, err := codec.SignRefresh(token.Subject{ID: 1, Role: models.RoleStudent})
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, ErrInternal)

	assert.ErrorIs(t, svc.Logout(ctx, refresh), ErrInternal)
}

func TestProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, amy())
	require.NoError(t, err)

	profile, err := f.svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, *user, *profile)

	_, err = f.svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
