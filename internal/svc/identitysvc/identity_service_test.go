package identitysvc_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/store/internal/domain"
	"github.com/mkrupp/store/internal/repo/user"
	"github.com/mkrupp/store/internal/repo/user/usertest"
	"github.com/mkrupp/store/internal/svc/identitysvc"
)

var errRepo = errors.New("repository error")

func TestIdentityService_Scenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	token, err := svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.NoError(t, err)

	userID, err := svc.Validate(ctx, "user@x.com", token)
	require.NoError(t, err)

	stored, err := repo.FindByLoginID(ctx, "user@x.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, userID)

	_, err = svc.Login(ctx, "user@x.com", "wrong", domain.ScopeStandard)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@x.com", "pass", domain.ScopeStandard)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestIdentityService_Register(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))
	assert.Equal(t, 1, repo.Len())

	err := svc.Register(ctx, "user@x.com", "other")
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	assert.Equal(t, 1, repo.Len(), "second registration inserts nothing")

	stored, err := repo.FindByLoginID(ctx, "user@x.com")
	require.NoError(t, err)
	assert.False(t, stored.IsPrivileged)
	assert.NotEmpty(t, stored.Salt)
	assert.NotEqual(t, "pass", stored.PasswordHash)
	assert.NotEqual(t, uuid.Nil, stored.ID)

	require.NoError(t, svc.Register(ctx, "User@x.com", "pass"), "login ids are case-sensitive")
	assert.Equal(t, 2, repo.Len())
}

func TestIdentityService_Register_EmptyPassword(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", ""))

	_, err := svc.Login(ctx, "user@x.com", "", domain.ScopeStandard)
	require.NoError(t, err)
}

// lostRaceRepository hides existing users from lookups, as if a concurrent
// registration had inserted them after the lookup.
type lostRaceRepository struct {
	*usertest.MemoryRepository
}

func (r lostRaceRepository) FindByLoginID(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func TestIdentityService_Register_LostRace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	svc.UserRepo = lostRaceRepository{repo}

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	err := svc.Register(ctx, "user@x.com", "pass")
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	assert.Equal(t, 1, repo.Len())
}

func TestIdentityService_Register_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	const workers = 8

	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[i] = svc.Register(ctx, "race@x.com", "pass")
		}()
	}

	wg.Wait()

	succeeded := 0

	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, domain.ErrAlreadyRegistered)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, repo.Len())
}

func TestIdentityService_RepositoryFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	token, err := svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.NoError(t, err)

	repo.Err = errRepo

	err = svc.Register(ctx, "other@x.com", "pass")
	require.ErrorIs(t, err, errRepo)
	require.NotErrorIs(t, err, domain.ErrAlreadyRegistered)

	_, err = svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.ErrorIs(t, err, errRepo)

	_, err = svc.Validate(ctx, "user@x.com", token)
	require.ErrorIs(t, err, errRepo)
}

func TestIdentityService_LoginScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))
	require.NoError(t, svc.EnsurePrivilegedUser(ctx, "admin@x.com", "secret"))

	tests := []struct {
		name      string
		loginID   string
		plaintext string
		scope     domain.Scope
		wantErr   error
	}{
		{name: "standard user standard scope", loginID: "user@x.com", plaintext: "pass", scope: domain.ScopeStandard},
		{
			name:    "standard user backend scope",
			loginID: "user@x.com", plaintext: "pass", scope: domain.ScopeBackend,
			wantErr: domain.ErrInvalidCredentials,
		},
		{name: "admin standard scope", loginID: "admin@x.com", plaintext: "secret", scope: domain.ScopeStandard},
		{name: "admin backend scope", loginID: "admin@x.com", plaintext: "secret", scope: domain.ScopeBackend},
		{
			name:    "admin wrong password",
			loginID: "admin@x.com", plaintext: "pass", scope: domain.ScopeBackend,
			wantErr: domain.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := svc.Login(ctx, tt.loginID, tt.plaintext, tt.scope)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, token)
		})
	}
}

func TestIdentityService_LoginScope_IndistinguishableFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	_, wrongPassword := svc.Login(ctx, "user@x.com", "wrong", domain.ScopeStandard)
	_, notPrivileged := svc.Login(ctx, "user@x.com", "pass", domain.ScopeBackend)

	require.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	require.ErrorIs(t, notPrivileged, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), notPrivileged.Error())
}

func TestIdentityService_Validate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, clock := newTestService(t)
	issuedAt := clock.now

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))
	require.NoError(t, svc.Register(ctx, "other@x.com", "pass"))

	token, err := svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.NoError(t, err)

	tests := []struct {
		name    string
		loginID string
		token   string
		elapsed bool
		wantErr error
	}{
		{name: "valid", loginID: "user@x.com", token: token},
		{name: "token of another account", loginID: "other@x.com", token: token, wantErr: domain.ErrInvalidToken},
		{name: "unknown login", loginID: "nobody@x.com", token: token, wantErr: domain.ErrUserNotFound},
		{name: "invalid token checked first", loginID: "nobody@x.com", token: "garbage", wantErr: domain.ErrInvalidToken},
		{name: "tampered token", loginID: "user@x.com", token: flipSignatureBit(t, token), wantErr: domain.ErrInvalidToken},
		{name: "expired token", loginID: "user@x.com", token: token, elapsed: true, wantErr: domain.ErrInvalidToken},
	}

	// Subtests share the clock and run sequentially
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.now = issuedAt
			if tt.elapsed {
				clock.now = issuedAt.Add(testTTL)
			}

			userID, err := svc.Validate(ctx, tt.loginID, tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uuid.Nil, userID)

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, userID)
		})
	}
}

func TestIdentityService_EnsurePrivilegedUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	require.NoError(t, svc.EnsurePrivilegedUser(ctx, "user@x.com", "other"), "existing account is kept")

	existing, err := repo.FindByLoginID(ctx, "user@x.com")
	require.NoError(t, err)
	assert.False(t, existing.IsPrivileged)

	require.NoError(t, svc.EnsurePrivilegedUser(ctx, "admin@x.com", "secret"))
	require.NoError(t, svc.EnsurePrivilegedUser(ctx, "admin@x.com", "secret"))
	assert.Equal(t, 2, repo.Len())

	admin, err := repo.FindByLoginID(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.True(t, admin.IsPrivileged)

	require.ErrorIs(t, svc.EnsurePrivilegedUser(ctx, "", "secret"), domain.ErrNoLoginID)
}

func TestNewIdentityService(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := usertest.NewMemoryRepository()

	svc, err := identitysvc.NewIdentityService(ctx, repo.Factory(), identitysvc.IdentityConfig{
		SigningSecretFile: filepath.Join(t.TempDir(), "identitysvc.secret"),
		TokenTTL:          testTTL,
		Hasher:            testHasherConfig,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))

	token, err := svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, "user@x.com", token)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	assert.True(t, repo.Closed())
}

func TestNewIdentityService_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := identitysvc.NewIdentityService(ctx, usertest.NewMemoryRepository().Factory(), identitysvc.IdentityConfig{
		SigningSecret: "short",
	})
	require.ErrorIs(t, err, identitysvc.ErrSecretTooShort)

	failing := func(context.Context) (user.Repository, error) {
		return nil, errRepo
	}

	_, err = identitysvc.NewIdentityService(ctx, failing, identitysvc.IdentityConfig{
		SigningSecret: string(testSecretKey),
	})
	require.ErrorIs(t, err, errRepo)
}
