package user

import (
	"context"
	"fmt"

	"github.com/mkrupp/store/internal/domain"
)

// Repository defines the interface for credential persistence.
type Repository interface {
	// FindByLoginID retrieves a user by exact, case-sensitive login id.
	// Returns an error matching domain.ErrUserNotFound if there is no such user.
	FindByLoginID(ctx context.Context, loginID string) (*domain.User, error)

	// Insert adds a new user. The uniqueness check on the login id is atomic with the
	// insert; a collision yields an error matching domain.ErrDuplicateLogin.
	Insert(ctx context.Context, user *domain.User) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func(ctx context.Context) (Repository, error)

// Supported values of RepositoryConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// RepositoryConfig selects and configures the credential store backend.
type RepositoryConfig struct {
	// Driver is one of "sqlite", "postgres" or "mongo"
	Driver string `env:"DRIVER" default:"sqlite" toml:"driver"`

	SQLite   SQLiteUserRepositoryConfig   `envPrefix:"SQLITE_"   toml:"sqlite"`
	Postgres PostgresUserRepositoryConfig `envPrefix:"POSTGRES_" toml:"postgres"`
	Mongo    MongoUserRepositoryConfig    `envPrefix:"MONGO_"    toml:"mongo"`
}

// RepositoryFactoryFor returns the factory of the backend named by cfg.Driver.
func RepositoryFactoryFor(cfg RepositoryConfig) (RepositoryFactory, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return SQLiteUserRepositoryFactory(cfg.SQLite), nil
	case DriverPostgres:
		return PostgresUserRepositoryFactory(cfg.Postgres), nil
	case DriverMongo:
		return MongoUserRepositoryFactory(cfg.Mongo), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
