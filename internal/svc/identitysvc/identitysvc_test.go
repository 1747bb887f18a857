package identitysvc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkrupp/store/internal/infra/logging"
	"github.com/mkrupp/store/internal/repo/user/usertest"
	"github.com/mkrupp/store/internal/svc/identitysvc"
)

// testHasherConfig keeps Argon2 cheap enough for tests.
var testHasherConfig = identitysvc.HasherConfig{
	Time:       1,
	Memory:     64,
	Threads:    1,
	KeyLength:  32,
	SaltLength: 16,
}

var testSecretKey = []byte("0123456789abcdef0123456789abcdef")

const testTTL = 10 * time.Minute

// testClock is a settable time source.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestSecret(t *testing.T) identitysvc.SigningSecret {
	t.Helper()

	secret, err := identitysvc.NewSigningSecret(testSecretKey)
	require.NoError(t, err)

	return secret
}

func newTestService(t *testing.T) (*identitysvc.IdentityService, *usertest.MemoryRepository, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	repo := usertest.NewMemoryRepository()

	svc := &identitysvc.IdentityService{
		UserRepo: repo,
		Hasher:   identitysvc.NewArgon2Hasher(testHasherConfig),
		Tokens:   identitysvc.NewJWTTokenService(newTestSecret(t), testTTL, identitysvc.WithClock(clock.Now)),
		Log:      logging.GetLogger("test.identitysvc"),
	}

	return svc, repo, clock
}
