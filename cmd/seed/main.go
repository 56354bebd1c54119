package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/config"
	"casefiling/backend/internal/logging"
	"casefiling/backend/internal/observability"
	"casefiling/backend/internal/repository"
	"casefiling/backend/internal/services"
)

func main() {
	var (
		envFile string
		author  string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:          "seed FIXTURE.yaml",
		Short:        "Load portals, templates and mappings from a YAML fixture",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), envFile, args[0], author, migrate)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Path to .env file")
	cmd.Flags().StringVar(&author, "author", "seed-script", "User recorded as the author of seeded records")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before seeding")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile, fixturePath, author string, migrate bool) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	fx, err := LoadFixture(fixturePath)
	if err != nil {
		return err
	}

	if cfg.DB.Host == "" {
		return errors.New("db.host is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to DB: %w", err)
	}
	defer pool.Close()
	if migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	auditor := audit.NewEmitter(audit.NewLogSink(logger), logger, observability.NewNop())
	templateStore := repository.NewPostgresTemplateStore(pool)
	portals := repository.NewPostgresPortalStore(pool)
	s := &seeder{
		portals:   portals,
		templates: services.NewTemplateService(templateStore, auditor, logger),
		mappings:  services.NewMappingService(repository.NewPostgresMappingStore(pool), templateStore, portals, auditor, logger),
		logger:    logger,
	}

	sum, err := s.apply(ctx, fx, author)
	if err != nil {
		return err
	}
	logger.Info("Seeding complete!", "portals", sum.Portals, "templates", sum.Templates, "mappings", sum.Mappings)
	return nil
}
