package identitysvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mkrupp/store/internal/domain"
	"github.com/mkrupp/store/internal/infra/logging"
	http_ "github.com/mkrupp/store/internal/infra/transport/http"
)

// maxBodyBytes bounds the size of credential request bodies.
const maxBodyBytes = 1 << 20

// ErrMalformedBody is returned when a request body is not valid credentials JSON.
var ErrMalformedBody = errors.New("malformed body")

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig
}

// HTTPTransport handles HTTP requests for the identity service.
type HTTPTransport struct {
	identitySvc *IdentityService
	log         logging.Logger
	mux         *http.ServeMux
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the identity endpoints:
// - POST /register: register a new user
// - POST /login?scope=standard|backend: log in and get a session token
// - GET /validate?loginId=&token=: validate a session token and get its user id.
func NewHTTPTransport(identitySvc *IdentityService) *HTTPTransport {
	ht := &HTTPTransport{
		identitySvc: identitySvc,
		log:         logging.GetLogger("svc.identitysvc.http_transport"),
		mux:         http.NewServeMux(),
	}

	ht.mux.HandleFunc("POST /register", ht.HandleRegister)
	ht.mux.HandleFunc("POST /login", ht.HandleLogin)
	ht.mux.HandleFunc("GET /validate", ht.HandleValidate)

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.mux.ServeHTTP(w, r)
}

// HandleRegister processes user registration requests.
// Expects a JSON body {"loginId", "plaintext"}.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "register request failed", "error", err)
		} else {
			log.DebugContext(ctx, "register request served")
		}
	}(r.Context())

	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)

		return err
	}

	if err := ht.identitySvc.Register(r.Context(), creds.LoginID, creds.Plaintext); err != nil {
		writeError(w, err)

		return fmt.Errorf("register user: %w", err)
	}

	w.WriteHeader(http.StatusOK)

	return nil
}

// HandleLogin processes login requests.
// Expects a JSON body {"loginId", "plaintext"} and an optional scope query parameter.
// Returns the session token as a JSON string.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "login request failed", "error", err)
		} else {
			log.DebugContext(ctx, "login request served")
		}
	}(r.Context())

	scope, err := domain.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("parse scope: %w", err)
	}

	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, err)

		return err
	}

	token, err := ht.identitySvc.Login(r.Context(), creds.LoginID, creds.Plaintext, scope)
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("login user: %w", err)
	}

	return writeJSON(w, token)
}

// HandleValidate processes token validation requests.
// Expects loginId and token query parameters.
// Returns the user id embedded in the token as a JSON string.
func (ht *HTTPTransport) HandleValidate(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleValidate(w, r)
}

func (ht *HTTPTransport) handleValidate(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "path", r.URL.Path))

	defer func(ctx context.Context) {
		if err != nil {
			log.WarnContext(ctx, "validate request failed", "error", err)
		} else {
			log.DebugContext(ctx, "validate request served")
		}
	}(r.Context())

	query := r.URL.Query()

	userID, err := ht.identitySvc.Validate(r.Context(), query.Get("loginId"), query.Get("token"))
	if err != nil {
		writeError(w, err)

		return fmt.Errorf("validate token: %w", err)
	}

	return writeJSON(w, userID.String())
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (domain.Credentials, error) {
	var creds domain.Credentials

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&creds); err != nil {
		return domain.Credentials{}, errors.Join(ErrMalformedBody, fmt.Errorf("decode body: %w", err))
	}

	if creds.LoginID == "" {
		return domain.Credentials{}, domain.ErrNoLoginID
	}

	return creds, nil
}

// errorStatus maps an error to the status code and body reported to callers.
// Unexpected failures are reported without detail.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return http.StatusBadRequest, "AlreadyRegistered"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest, "InvalidToken"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "UserNotFound"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "InvalidCredentials"
	case errors.Is(err, domain.ErrInvalidScope):
		return http.StatusBadRequest, "InvalidScope"
	case errors.Is(err, domain.ErrNoLoginID):
		return http.StatusBadRequest, "NoLoginID"
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, "MalformedBody"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorStatus(err)
	http.Error(w, body, status)
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}
