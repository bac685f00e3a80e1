package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	appconfig "github.com/wolfman30/pharmesol-assistant/internal/config"
	"github.com/wolfman30/pharmesol-assistant/internal/conversation"
	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// Storage holds the conversation store and lead repository. Without a
// DATABASE_URL both are in-memory.
type Storage struct {
	Conversations conversation.Store
	Leads         leads.Repository
	Pool          *pgxpool.Pool
	DB            *sql.DB
}

// Ping checks the database connections. In-memory storage is always healthy.
func (s *Storage) Ping(ctx context.Context) error {
	if s.Pool != nil {
		if err := s.Pool.Ping(ctx); err != nil {
			return err
		}
	}
	if s.DB != nil {
		return s.DB.PingContext(ctx)
	}
	return nil
}

func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// BuildStorage opens the Postgres pools (pgxpool for leads, database/sql over
// pgx for conversations) or falls back to in-memory storage.
func BuildStorage(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		return &Storage{
			Conversations: conversation.NewMemoryStore(),
			Leads:         leads.NewInMemoryRepository(),
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres pool: %w", err)
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: open postgres: %w", err)
	}
	storage := &Storage{
		Conversations: conversation.NewPostgresStore(db),
		Leads:         leads.NewPostgresRepository(pool),
		Pool:          pool,
		DB:            db,
	}
	if err := storage.Ping(ctx); err != nil {
		storage.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("postgres storage connected")
	return storage, nil
}
