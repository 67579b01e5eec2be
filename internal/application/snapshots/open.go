package snapshots

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/analysis-vault/internal/config"
	domain "github.com/bryanwahyu/analysis-vault/internal/domain/analyses"
	"github.com/bryanwahyu/analysis-vault/internal/infra/db/memory"
	mysqldb "github.com/bryanwahyu/analysis-vault/internal/infra/db/mysql"
	pgdb "github.com/bryanwahyu/analysis-vault/internal/infra/db/postgres"
	sqlitedb "github.com/bryanwahyu/analysis-vault/internal/infra/db/sqlite"
)

// OpenRepository binds the configured backend adapter behind the Repository
// contract, so callers above the façade never see adapter-specific types.
func OpenRepository(ctx context.Context, cfg *config.Config) (domain.Repository, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewAnalysisRepository(nil), nil

	case config.BackendSQLite:
		db, err := sqlitedb.Connect(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite connect: %w", err)
		}
		return sqlitedb.NewAnalysisRepository(db), nil

	case config.BackendMySQL:
		db, err := mysqldb.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return mysqldb.NewAnalysisRepository(db), nil

	case config.BackendPostgres:
		db, err := pgdb.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return pgdb.NewAnalysisRepository(db), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}
