package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/oauth2/clientcredentials"

	"casefiling/backend/internal/api"
	"casefiling/backend/internal/audit"
	"casefiling/backend/internal/auth"
	"casefiling/backend/internal/casedata"
	"casefiling/backend/internal/config"
	"casefiling/backend/internal/devcert"
	"casefiling/backend/internal/logging"
	"casefiling/backend/internal/mcp"
	"casefiling/backend/internal/observability"
	"casefiling/backend/internal/repository"
	"casefiling/backend/internal/services"
)

const serviceName = "casefiling"

func main() {
	var envFile string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Form generation and portal mapping service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "Path to .env file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), envFile)
		},
	}
	root.RunE = serve.RunE

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), envFile)
		},
	}

	var (
		userID string
		role   string
		ttl    time.Duration
	)
	devToken := &cobra.Command{
		Use:   "dev-token",
		Short: "Print a bearer token signed with auth.dev_signing_key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(envFile)
			if err != nil {
				return err
			}
			if !cfg.IsDev() || cfg.Auth.DevSigningKey == "" {
				return errors.New("dev tokens require environment=dev and auth.dev_signing_key")
			}
			token, err := auth.IssueDevToken([]byte(cfg.Auth.DevSigningKey), userID, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	devToken.Flags().StringVar(&userID, "user", "dev-admin", "Subject of the token")
	devToken.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "admin or caseworker")
	devToken.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")

	root.AddCommand(serve, migrate, devToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(envFile string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

func runMigrate(ctx context.Context, envFile string) error {
	cfg, logger, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.DB.Host == "" {
		return errors.New("db.host is not configured")
	}
	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("schema applied", "database", cfg.DB.Name)
	return nil
}

// stores groups the persistence backends chosen at startup.
type stores struct {
	templates   repository.TemplateStore
	mappings    repository.MappingStore
	submissions repository.SubmissionStore
	portals     repository.PortalStore
	ready       func(context.Context) error
	close       func()
}

func initStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stores, error) {
	if cfg.DB.Host == "" {
		logger.Warn("db.host not set; using in-memory stores")
		return &stores{
			templates:   repository.NewInMemoryTemplateStore(),
			mappings:    repository.NewInMemoryMappingStore(),
			submissions: repository.NewInMemorySubmissionStore(),
			portals:     repository.NewInMemoryPortalStore(),
			close:       func() {},
		}, nil
	}

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected")

	s := &stores{
		templates:   repository.NewPostgresTemplateStore(pool),
		mappings:    repository.NewPostgresMappingStore(pool),
		submissions: repository.NewPostgresSubmissionStore(pool),
		portals:     repository.NewPostgresPortalStore(pool),
		ready:       pool.Ping,
		close:       pool.Close,
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// the cache falls back to the database on every Redis error
			logger.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		s.templates = repository.NewCachedTemplateStore(s.templates, client, cfg.Redis.TemplateTTL, logger)
		closePool := s.close
		s.close = func() {
			_ = client.Close()
			closePool()
		}
		logger.Info("Template cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TemplateTTL)
	}
	return s, nil
}

func initAuditSink(cfg *config.Config, logger *logging.Logger) (audit.Sink, func(), error) {
	if !cfg.Kafka.Enabled {
		return audit.NewLogSink(logger), func() {}, nil
	}
	sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.EmitTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka audit sink: %w", err)
	}
	logger.Info("Audit events published to Kafka", "topic", cfg.Kafka.AuditTopic)
	return sink, sink.Close, nil
}

func initCaseData(cfg *config.Config, logger *logging.Logger) services.CaseDataSource {
	if cfg.CaseService.URL == "" {
		logger.Warn("case_service.url not set; case data lookups resolve nothing")
		return casedata.NewDocumentSource()
	}
	var creds *clientcredentials.Config
	if cfg.CaseService.TokenURL != "" {
		creds = &clientcredentials.Config{
			ClientID:     cfg.CaseService.ClientID,
			ClientSecret: cfg.CaseService.ClientSecret,
			TokenURL:     cfg.CaseService.TokenURL,
		}
	}
	return casedata.NewHTTPClient(cfg.CaseService.URL, cfg.CaseService.Timeout, creds)
}

func runServe(ctx context.Context, envFile string) error {
	cfg, logger, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting case filing service",
		"environment", cfg.Environment,
		"okta_domain", cfg.Auth.OktaDomain,
		"addr", cfg.Server.Addr,
	)

	metrics, err := observability.New(serviceName)
	if err != nil {
		return fmt.Errorf("metrics initialization failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	st, err := initStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer st.close()

	sink, closeSink, err := initAuditSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()
	auditor := audit.NewEmitter(sink, logger, metrics)

	// Initialize service layer
	schemas, err := services.NewSchemaValidator()
	if err != nil {
		return err
	}
	templates := services.NewTemplateService(st.templates, auditor, logger)
	mappings := services.NewMappingService(st.mappings, st.templates, st.portals, auditor, logger)
	submissions := services.NewSubmissionService(st.submissions, auditor, logger)
	resolver := services.NewResolver(initCaseData(cfg, logger), metrics, cfg.Resolver.Timeout, cfg.Resolver.MaxConcurrency)
	engine := services.NewEngine(templates, st.mappings, st.submissions, resolver, auditor, logger, metrics)

	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	server := &api.Server{
		Templates:   templates,
		Mappings:    mappings,
		Submissions: submissions,
		Engine:      engine,
		Schemas:     schemas,
		Logger:      logger,
		Ready:       st.ready,
	}
	server.RegisterRoutes(e, echo.WrapMiddleware(authz.RequireAuth), metrics.Handler())
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(engine, templates, submissions, api.Version)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer(), authz.RequireAuth)
	e.Any("/mcp", echo.WrapHandler(mcpHandlers))
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	logger.Info("MCP protocol handlers mounted")

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if generated, err := devcert.Ensure(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
				serverErrors <- fmt.Errorf("prepare TLS certificate: %w", err)
				return
			} else if generated {
				logger.Warn("generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
		return nil
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection", "host", cfg.DB.Host, "database", cfg.DB.Name)

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
