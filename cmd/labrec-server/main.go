package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labrec/labrec/internal/config"
	"github.com/labrec/labrec/internal/domain/catalog"
	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/ranges"
	"github.com/labrec/labrec/internal/domain/result"
	"github.com/labrec/labrec/internal/platform/db"
	"github.com/labrec/labrec/internal/platform/importer"
	"github.com/labrec/labrec/internal/platform/middleware"
	"github.com/labrec/labrec/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labrec-server",
		Short: "Clinical lab record API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the lab record API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk import test results from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkDuplicates, _ := cmd.Flags().GetBool("check-duplicates")

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svcs := buildServices(pool, cfg, logger)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			stats, err := svcs.importer.ImportCSV(ctx, f, checkDuplicates)
			if err != nil {
				return err
			}

			fmt.Printf("Added:              %d\n", stats.Added)
			fmt.Printf("Duplicates skipped: %d\n", stats.DuplicatesSkipped)
			fmt.Printf("Errored:            %d\n", stats.Errored)
			fmt.Printf("Patients added:     %d\n", stats.PatientsAdded)
			fmt.Printf("Test types added:   %d\n", stats.TestTypesAdded)
			for _, msg := range stats.Errors {
				fmt.Printf("  error: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().Bool("check-duplicates", true, "Skip rows that match an existing result")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <patient-id>",
		Short: "Write an Excel report for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			patientID := args[0]
			if out == "" {
				out = fmt.Sprintf("patient_%s_report.xlsx", patientID)
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svcs := buildServices(pool, cfg, logger)

			file, err := svcs.reports.Generate(ctx, patientID)
			if err != nil {
				return err
			}
			if err := file.Save(out); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Printf("Report written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Output path (default patient_<id>_report.xlsx)")
	return cmd
}

// services bundles the wired domain services shared by the serve, import,
// and report commands.
type services struct {
	catalog  *catalog.Service
	patients *patient.Service
	resolver *ranges.Resolver
	results  *result.Service
	importer *importer.Importer
	reports  *reporting.Generator
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) *services {
	testTypeRepo := catalog.NewTestTypeRepoPG(pool)
	customRangeRepo := catalog.NewCustomRangeRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	resultRepo := result.NewRepoPG(pool)

	// Catalog and patient deletions cascade through the result repository so
	// the purge runs inside the same transaction.
	catalogSvc := catalog.NewService(testTypeRepo, customRangeRepo, resultRepo, pool)
	patientSvc := patient.NewService(patientRepo, resultRepo, pool)

	resolver := ranges.NewResolver(catalogSvc)
	classifier := ranges.NewClassifier(cfg.CriticalMargin)

	guard := result.NewDuplicateGuard(resultRepo, logger)
	resultSvc := result.NewService(resultRepo, guard, resolver, classifier, patientSvc, cfg.DuplicateToleranceM, pool, logger)

	return &services{
		catalog:  catalogSvc,
		patients: patientSvc,
		resolver: resolver,
		results:  resultSvc,
		importer: importer.New(catalogSvc, patientSvc, resultSvc, logger),
		reports:  reporting.NewGenerator(patientSvc, resultSvc),
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "20M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// ETag and conditional GET on the read endpoints
	apiV1.Use(middleware.ETagMiddleware(middleware.DefaultCacheConfig()))

	svcs := buildServices(pool, cfg, logger)

	// Handlers
	catalog.NewHandler(svcs.catalog).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patients).RegisterRoutes(apiV1)
	ranges.NewHandler(svcs.resolver).RegisterRoutes(apiV1)
	result.NewHandler(svcs.results, svcs.catalog).RegisterRoutes(apiV1)
	importer.NewHandler(svcs.importer).RegisterRoutes(apiV1)
	reporting.NewHandler(svcs.reports).RegisterRoutes(apiV1)

	// Record counts, used by dashboards polling the API
	apiV1.GET("/stats", func(c echo.Context) error {
		testTypes, customRanges, err := svcs.catalog.Counts(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		patients, err := svcs.patients.Count(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		results, err := svcs.results.Count(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]int{
			"patients":      patients,
			"test_types":    testTypes,
			"custom_ranges": customRanges,
			"test_results":  results,
		})
	})

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
