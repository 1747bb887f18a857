package identitysvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkrupp/store/internal/domain"
	"github.com/mkrupp/store/internal/infra/logging"
	"github.com/mkrupp/store/internal/repo/user"
)

// IdentityConfig contains configuration parameters for the identity service.
type IdentityConfig struct {
	// SigningSecret is the token signing secret; when empty it is read from SigningSecretFile
	SigningSecret string `env:"SIGNING_SECRET" default:"" toml:"signing_secret"`
	// SigningSecretFile is where the signing secret is kept, generated on first start
	SigningSecretFile string `env:"SIGNING_SECRET_FILE" default:"var/storage/identitysvc.secret" toml:"signing_secret_file"`

	// TokenTTL is the validity duration of session tokens
	TokenTTL time.Duration `env:"TOKEN_TTL" default:"10m" toml:"token_ttl"`

	// AdminLoginID, when set, is seeded as a privileged account on start-up
	AdminLoginID  string `env:"ADMIN_LOGIN_ID" default:"" toml:"admin_login_id"`
	AdminPassword string `env:"ADMIN_PASSWORD" default:"" toml:"admin_password"`

	Hasher HasherConfig `envPrefix:"HASHER_" toml:"hasher"`
}

// IdentityService registers users, logs them in and validates their session tokens.
type IdentityService struct {
	UserRepo user.Repository
	Hasher   PasswordHasher
	Tokens   TokenService
	Log      logging.Logger
}

// NewIdentityService creates a new IdentityService with the given user repository factory and configuration.
// Returns an error if the signing secret cannot be loaded or the user repository cannot be created.
func NewIdentityService(
	ctx context.Context,
	repoFactory user.RepositoryFactory,
	cfg IdentityConfig,
) (*IdentityService, error) {
	secret, err := LoadSigningSecret(cfg.SigningSecret, cfg.SigningSecretFile)
	if err != nil {
		return nil, fmt.Errorf("load signing secret: %w", err)
	}

	userRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &IdentityService{
		UserRepo: userRepo,
		Hasher:   NewArgon2Hasher(cfg.Hasher),
		Tokens:   NewJWTTokenService(secret, cfg.TokenTTL),
		Log:      logging.GetLogger("svc.identitysvc.identity_service"),
	}, nil
}

// Register creates a standard account for loginID. A taken login id, including one
// lost to a concurrent registration, yields domain.ErrAlreadyRegistered.
func (s *IdentityService) Register(ctx context.Context, loginID, plaintext string) (err error) {
	log := s.Log.With(logging.Group("user", "loginId", loginID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "register user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	return s.insertUser(ctx, loginID, plaintext, false)
}

// EnsurePrivilegedUser creates a privileged account for loginID unless one with that
// login id already exists, in which case it is left untouched.
func (s *IdentityService) EnsurePrivilegedUser(ctx context.Context, loginID, plaintext string) (err error) {
	log := s.Log.With(logging.Group("user", "loginId", loginID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "seed privileged user failed", "error", err)
		}
	}()

	if loginID == "" {
		return domain.ErrNoLoginID
	}

	err = s.insertUser(ctx, loginID, plaintext, true)
	if errors.Is(err, domain.ErrAlreadyRegistered) {
		log.DebugContext(ctx, "privileged user exists")

		return nil
	} else if err != nil {
		return err
	}

	log.InfoContext(ctx, "privileged user created")

	return nil
}

func (s *IdentityService) insertUser(ctx context.Context, loginID, plaintext string, privileged bool) error {
	// Pre-check gives the common case a clean answer; the store constraint decides races
	_, err := s.UserRepo.FindByLoginID(ctx, loginID)
	if err == nil {
		return domain.ErrAlreadyRegistered
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("get user: %w", err)
	}

	salt, err := s.Hasher.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	newUser := &domain.User{
		ID:           id,
		LoginID:      loginID,
		PasswordHash: s.Hasher.Hash(plaintext, salt),
		Salt:         salt,
		IsPrivileged: privileged,
		CreatedAt:    time.Now().Unix(),
	}

	if err := s.UserRepo.Insert(ctx, newUser); err != nil {
		if errors.Is(err, domain.ErrDuplicateLogin) {
			return errors.Join(domain.ErrAlreadyRegistered, err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// Login authenticates loginID and issues a session token. An unknown login id yields
// domain.ErrUserNotFound. A wrong password and a backend scope requested by an
// unprivileged user both yield the same domain.ErrInvalidCredentials.
func (s *IdentityService) Login(
	ctx context.Context,
	loginID, plaintext string,
	scope domain.Scope,
) (_ string, err error) {
	log := s.Log.With(logging.Group("user", "loginId", loginID, "scope", scope.String()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	// Authenticate user
	found, err := s.UserRepo.FindByLoginID(ctx, loginID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}

	if !s.Hasher.Verify(plaintext, found.Salt, found.PasswordHash) {
		return "", domain.ErrInvalidCredentials
	}

	if !scope.Permits(found) {
		return "", domain.ErrInvalidCredentials
	}

	// Generate token
	token, err := s.Tokens.Issue(found.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	return token, nil
}

// Validate checks that token is valid and was issued to the account of loginID, and
// returns its user id. Token checks come first: an invalid token yields
// domain.ErrInvalidToken even for an unknown login id.
func (s *IdentityService) Validate(ctx context.Context, loginID, token string) (_ uuid.UUID, err error) {
	log := s.Log.With(logging.Group("user", "loginId", loginID))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "validate token failed", "error", err)
		} else {
			log.DebugContext(ctx, "token validated")
		}
	}()

	userID, err := s.Tokens.Validate(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("validate token: %w", err)
	}

	found, err := s.UserRepo.FindByLoginID(ctx, loginID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get user: %w", err)
	}

	if found.ID != userID {
		return uuid.Nil, fmt.Errorf("token of another user: %w", domain.ErrInvalidToken)
	}

	return userID, nil
}

// Close releases resources held by the service, such as database connections.
// Returns an error if cleanup fails.
func (s *IdentityService) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}
