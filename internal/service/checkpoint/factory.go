package checkpoint

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
	Dynamo      DynamoConfig
}

// New builds the configured store. The backend is fixed for the store's
// lifetime.
func New(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case BackendMemory, "":
		s = NewMemory()
	case BackendSQLite:
		s, err = NewSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		s, err = NewPostgres(ctx, cfg.PostgresDSN)
	case BackendDynamoDB:
		s, err = NewDynamo(ctx, cfg.Dynamo)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendMemory
	}
	log.Info().Str("backend", backend).Msg("Checkpoint store initialized")
	return s, nil
}
