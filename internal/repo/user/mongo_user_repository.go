package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mkrupp/store/internal/domain"
	"github.com/mkrupp/store/internal/infra/logging"
)

// MongoUserRepositoryConfig holds configuration for the MongoDB user repository.
type MongoUserRepositoryConfig struct {
	URI        string `env:"URI"        default:"mongodb://localhost:27017" toml:"uri"`
	Database   string `env:"DATABASE"   default:"identity"                  toml:"database"`
	Collection string `env:"COLLECTION" default:"users"                     toml:"collection"`

	// ConnectTimeout bounds connecting and the initial ping
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"10s" toml:"connect_timeout"`
}

// userDocument is the stored shape of a domain.User.
type userDocument struct {
	ID           string `bson:"_id"`
	LoginID      string `bson:"loginId"`
	PasswordHash string `bson:"passwordHash"`
	Salt         string `bson:"salt"`
	IsPrivileged bool   `bson:"isPrivileged"`
	CreatedAt    int64  `bson:"createdAt"`
}

// MongoUserRepository implements Repository on a MongoDB collection.
type MongoUserRepository struct {
	client *mongo.Client // nil when the collection is owned by the caller
	coll   *mongo.Collection
	log    logging.Logger
}

var _ Repository = (*MongoUserRepository)(nil)

// MongoUserRepositoryFactory creates a factory function that returns a new MongoUserRepository.
func MongoUserRepositoryFactory(cfg MongoUserRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewMongoUserRepository(ctx, cfg)
	}
}

// NewMongoUserRepository connects to MongoDB and makes sure the unique login id index exists.
func NewMongoUserRepository(ctx context.Context, cfg MongoUserRepositoryConfig) (*MongoUserRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))

		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	repo := newMongoUserRepository(client.Database(cfg.Database).Collection(cfg.Collection))
	repo.client = client

	if err := repo.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))

		return nil, err
	}

	return repo, nil
}

func newMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{
		coll: coll,
		log:  logging.GetLogger("repo.user.mongo_user_repository"),
	}
}

// EnsureIndexes creates the unique index on loginId. It is idempotent.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	name, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "loginId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("loginId_unique"),
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	r.log.DebugContext(ctx, "index ensured", "index", name)

	return nil
}

// Insert implements Repository.Insert. The unique loginId index makes the
// uniqueness check atomic.
func (r *MongoUserRepository) Insert(ctx context.Context, user *domain.User) error {
	_, err := r.coll.InsertOne(ctx, userDocument{
		ID:           user.ID.String(),
		LoginID:      user.LoginID,
		PasswordHash: user.PasswordHash,
		Salt:         user.Salt,
		IsPrivileged: user.IsPrivileged,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = errors.Join(domain.ErrDuplicateLogin, err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	r.log.DebugContext(ctx, "user inserted", logging.Group("user", "id", user.ID.String()))

	return nil
}

// FindByLoginID implements Repository.FindByLoginID.
func (r *MongoUserRepository) FindByLoginID(ctx context.Context, loginID string) (*domain.User, error) {
	var doc userDocument

	err := r.coll.FindOne(ctx, bson.D{{Key: "loginId", Value: loginID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = errors.Join(domain.ErrUserNotFound, err)
		}

		return nil, fmt.Errorf("query user: %w", err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	return &domain.User{
		ID:           id,
		LoginID:      doc.LoginID,
		PasswordHash: doc.PasswordHash,
		Salt:         doc.Salt,
		IsPrivileged: doc.IsPrivileged,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// Close implements Repository.Close by disconnecting the client.
func (r *MongoUserRepository) Close() error {
	if r.client == nil {
		return nil
	}

	if err := r.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}

	return nil
}
