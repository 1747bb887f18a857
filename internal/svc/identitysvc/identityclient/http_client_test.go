package identityclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/store/internal/domain"
	context_ "github.com/mkrupp/store/internal/infra/context"
	"github.com/mkrupp/store/internal/repo/user/usertest"
	"github.com/mkrupp/store/internal/svc/identitysvc"
	"github.com/mkrupp/store/internal/svc/identitysvc/identityclient"
)

func newIdentityServer(t *testing.T) (*httptest.Server, *identitysvc.IdentityService) {
	t.Helper()

	svc, err := identitysvc.NewIdentityService(context.Background(), usertest.NewMemoryRepository().Factory(),
		identitysvc.IdentityConfig{
			SigningSecretFile: filepath.Join(t.TempDir(), "identitysvc.secret"),
			TokenTTL:          time.Minute,
			Hasher:            identitysvc.HasherConfig{Time: 1, Memory: 64, Threads: 1, KeyLength: 32, SaltLength: 16},
		})
	require.NoError(t, err)

	server := httptest.NewServer(identitysvc.NewHTTPTransport(svc))
	t.Cleanup(server.Close)

	return server, svc
}

func TestHTTPClient_Validate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	server, svc := newIdentityServer(t)

	require.NoError(t, svc.Register(ctx, "user@x.com", "pass"))
	require.NoError(t, svc.Register(ctx, "other@x.com", "pass"))

	token, err := svc.Login(ctx, "user@x.com", "pass", domain.ScopeStandard)
	require.NoError(t, err)

	stored, err := svc.UserRepo.FindByLoginID(ctx, "user@x.com")
	require.NoError(t, err)

	client := identityclient.NewHTTPClient(identityclient.HTTPClientConfig{BaseURL: server.URL + "/"}, server.Client())

	tests := []struct {
		name    string
		loginID string
		token   string
		wantOK  bool
	}{
		{name: "valid", loginID: "user@x.com", token: token, wantOK: true},
		{name: "other account", loginID: "other@x.com", token: token},
		{name: "unknown login", loginID: "nobody@x.com", token: token},
		{name: "garbage token", loginID: "user@x.com", token: "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID, ok, err := client.Validate(ctx, tt.loginID, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				assert.Equal(t, stored.ID, userID)
			}
		})
	}
}

func TestHTTPClient_Validate_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := identityclient.NewHTTPClient(identityclient.HTTPClientConfig{BaseURL: server.URL}, nil)

	_, ok, err := client.Validate(context.Background(), "user@x.com", "token")
	require.ErrorIs(t, err, identityclient.ErrUnexpectedStatus)
	assert.False(t, ok)
}

func TestHTTPClient_Validate_ForwardsTraceID(t *testing.T) {
	t.Parallel()

	var (
		gotTraceID string
		gotQuery   map[string][]string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = r.Header.Get(identityclient.TraceIDHeader)
		gotQuery = r.URL.Query()

		_, _ = w.Write([]byte(`"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`))
	}))
	t.Cleanup(server.Close)

	client := identityclient.NewHTTPClient(identityclient.HTTPClientConfig{BaseURL: server.URL}, server.Client())
	ctx := context_.WithTraceID(context.Background(), "trace-123")

	userID, ok, err := client.Validate(ctx, "user+1@x.com", "a.b.c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", userID.String())
	assert.Equal(t, "trace-123", gotTraceID)
	assert.Equal(t, []string{"user+1@x.com"}, gotQuery["loginId"])
	assert.Equal(t, []string{"a.b.c"}, gotQuery["token"])
}
