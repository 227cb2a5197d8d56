package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medguard/medguard/internal/config"
	"github.com/medguard/medguard/internal/domain/analysis"
	"github.com/medguard/medguard/internal/domain/patient"
	"github.com/medguard/medguard/internal/domain/rules"
	"github.com/medguard/medguard/internal/engine"
	"github.com/medguard/medguard/internal/platform/db"
	"github.com/medguard/medguard/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medguard-server",
		Short: "Clinical rule evaluation and medication safety alert service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(analyzeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MedGuard API server",
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

// analyzeInput is the file format accepted by the analyze command: a patient
// record plus optional medication history, matching what the HTTP analysis
// endpoint assembles from the database.
type analyzeInput struct {
	Patient     engine.PatientRecord      `json:"patient"`
	Medications []engine.MedicationRecord `json:"medications,omitempty"`
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the rule engine against a patient snapshot from files, without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			patientPath, _ := cmd.Flags().GetString("patient")
			rulesPath, _ := cmd.Flags().GetString("rules")
			if patientPath == "" {
				return fmt.Errorf("--patient is required")
			}

			data, err := os.ReadFile(patientPath)
			if err != nil {
				return fmt.Errorf("read patient file: %w", err)
			}
			var input analyzeInput
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("parse patient file: %w", err)
			}
			if input.Patient == nil {
				// Allow a bare record without the wrapper object.
				if err := json.Unmarshal(data, &input.Patient); err != nil {
					return fmt.Errorf("parse patient file: %w", err)
				}
			}

			var ruleSet []*engine.Rule
			if rulesPath != "" {
				rdata, err := os.ReadFile(rulesPath)
				if err != nil {
					return fmt.Errorf("read rules file: %w", err)
				}
				if err := json.Unmarshal(rdata, &ruleSet); err != nil {
					return fmt.Errorf("parse rules file: %w", err)
				}
			}

			analyzer := engine.NewAnalyzer(zerolog.New(os.Stderr).With().Timestamp().Logger())
			result, err := analyzer.Analyze(input.Patient, input.Medications, ruleSet)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().String("patient", "", "Path to patient snapshot JSON")
	cmd.Flags().String("rules", "", "Path to rules JSON (built-in defaults when omitted)")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
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
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Domain wiring
	rulesRepo := rules.NewRepoPG(pool)
	rulesSvc := rules.NewService(rulesRepo)
	rules.NewHandler(rulesSvc).RegisterRoutes(apiV1)

	patientRepo := patient.NewRepoPG(pool)
	medicationRepo := patient.NewMedicationRepoPG(pool)
	patientSvc := patient.NewService(patientRepo, medicationRepo)

	alertRepo := analysis.NewRepoPG(pool)
	analyzer := engine.NewAnalyzer(logger)
	analysisSvc := analysis.NewService(rulesSvc, patientSvc, alertRepo, analyzer, logger)
	analysis.NewHandler(analysisSvc).RegisterRoutes(apiV1)

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
