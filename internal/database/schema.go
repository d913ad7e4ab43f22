package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"libris/internal/config"
	"libris/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

const dialectPostgres = "postgres"

// ErrSQLMigrationsUnsupported is returned when the embedded migrations are
// asked to run against a database other than PostgreSQL. The scripts use
// BIGSERIAL columns and regex CHECK constraints.
var ErrSQLMigrationsUnsupported = errors.New("embedded sql migrations require postgres")

var protectedEnvs = []string{"production", "prod", "staging", "stage"}

// schemaPlan is what ApplySchema will do for one database and configuration.
type schemaPlan struct {
	mode    string
	dialect string
	sql     bool
	auto    bool
	// skippedSQL is set when hybrid mode falls back to AutoMigrate because
	// the database cannot run the embedded scripts.
	skippedSQL bool
}

// SchemaStatus describes what ApplySchema would do for a configuration.
type SchemaStatus struct {
	Mode               string
	Dialect            string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	SQLSkipped         bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

func dialectOf(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	return db.Dialector.Name()
}

func protectedEnv(env string) bool {
	return slices.Contains(protectedEnvs, strings.ToLower(strings.TrimSpace(env)))
}

func schemaMode(cfg *config.Config) string {
	if mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)); mode != "" {
		return mode
	}
	return SchemaModeHybrid
}

// planSchema picks between the embedded SQL migrations and GORM AutoMigrate.
// Hybrid runs the SQL scripts and adds AutoMigrate outside protected
// environments. Databases that cannot run the scripts get AutoMigrate only,
// and an explicit sql mode on them is an error.
func planSchema(dialect string, cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{mode: schemaMode(cfg), dialect: dialect}
	protected := protectedEnv(cfg.Env)
	sqlCapable := dialect == dialectPostgres

	switch plan.mode {
	case SchemaModeSQL:
		if !sqlCapable {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=sql on %s: %w", dialect, ErrSQLMigrationsUnsupported)
		}
		plan.sql = true
	case SchemaModeAuto:
		if protected && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.auto = true
	case SchemaModeHybrid:
		if sqlCapable {
			plan.sql = true
			plan.auto = !protected
		} else {
			plan.auto = true
			plan.skippedSQL = true
		}
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.mode)
	}
	return plan, nil
}

// ApplySchema brings the database schema up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(dialectOf(db), cfg)
	if err != nil {
		return err
	}

	if plan.skippedSQL {
		middleware.Logger.Info("Skipping embedded SQL migrations", slog.String("dialect", plan.dialect))
	}
	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.auto {
		return nil
	}

	if plan.mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
		middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
	}
	middleware.Logger.Info("Running GORM AutoMigrate",
		slog.String("mode", plan.mode), slog.String("dialect", plan.dialect), slog.String("env", cfg.Env))
	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the schema plan and, when SQL migrations are in
// play, which embedded versions are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(dialectOf(db), cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.mode,
		Dialect:            plan.dialect,
		Environment:        cfg.Env,
		WillRunSQL:         plan.sql,
		WillRunAutoMigrate: plan.auto,
		SQLSkipped:         plan.skippedSQL,
	}
	if !plan.sql {
		return status, nil
	}

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied
	for _, m := range GetMigrations() {
		if !slices.Contains(applied, m.Version) {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}
	return status, nil
}

func requirePostgres(db *gorm.DB) error {
	if dialect := dialectOf(db); dialect != dialectPostgres {
		return fmt.Errorf("%s: %w", dialect, ErrSQLMigrationsUnsupported)
	}
	return nil
}
