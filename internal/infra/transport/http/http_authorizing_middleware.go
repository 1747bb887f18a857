package http

import (
	"net/http"
	"strings"

	"github.com/mkrupp/store/internal/domain"
	context_ "github.com/mkrupp/store/internal/infra/context"
	"github.com/mkrupp/store/internal/infra/logging"
	"github.com/mkrupp/store/internal/svc/identitysvc/identityclient"
)

const (
	// AuthorizationHeader carries the session token as "Bearer <token>".
	AuthorizationHeader = "Authorization"
	// LoginIDHeader names the account the token is claimed for.
	LoginIDHeader = "X-Login-ID"
)

// AuthorizingMiddleware creates middleware that validates session tokens against the
// identity service. Requests without a token or login id are rejected with 400, invalid
// tokens with 401 and identity service failures with 502. On success the user id is
// added to the request context.
func AuthorizingMiddleware(
	next http.Handler,
	authClient identityclient.AuthClient,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get(AuthorizationHeader))
		if token == "" {
			log.WarnContext(r.Context(), "request rejected", "error", domain.ErrNoAuthToken)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

			return
		}

		loginID := r.Header.Get(LoginIDHeader)
		if loginID == "" {
			log.WarnContext(r.Context(), "request rejected", "error", domain.ErrNoLoginID)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

			return
		}

		userID, ok, err := authClient.Validate(r.Context(), loginID, token)
		if err != nil {
			log.ErrorContext(r.Context(), "validate token failed", "error", err)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)

			return
		} else if !ok {
			log.WarnContext(r.Context(), "request rejected",
				"error", domain.ErrInvalidToken,
				logging.Group("user", "loginId", loginID),
			)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context_.WithUserID(r.Context(), userID)))
	})
}

func bearerToken(header string) string {
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}

	return strings.TrimSpace(token)
}
