package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/drugcheck-api/alternatives"
	"github.com/giygas/drugcheck-api/compatibility"
	"github.com/giygas/drugcheck-api/config"
	"github.com/giygas/drugcheck-api/handlers"
	"github.com/giygas/drugcheck-api/health"
	"github.com/giygas/drugcheck-api/llm"
	"github.com/giygas/drugcheck-api/logging"
	"github.com/giygas/drugcheck-api/openfda"
	"github.com/giygas/drugcheck-api/patients"
	"github.com/giygas/drugcheck-api/pubmed"
	"github.com/giygas/drugcheck-api/scheduler"
	"github.com/giygas/drugcheck-api/server"
	"github.com/giygas/drugcheck-api/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "drugcheck",
		Short:         "Drug compatibility and alternatives API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level in CLI commands")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd(&verbose))
	rootCmd.AddCommand(alternativesCmd(&verbose))
	rootCmd.AddCommand(patientCmd(&verbose))

	return rootCmd
}

// loadEnv reads .env from the working directory, then from the executable's directory
func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	ex, err := os.Executable()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}

// loadConfig loads configuration and sets up logging. CLI commands keep the
// console quiet so stdout carries only the JSON result.
func loadConfig(cli, verbose bool) (*config.Config, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{
		Dir:            cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}
	if cli {
		opts.Dir = ""
		opts.Level = "error"
		if verbose {
			opts.Level = "info"
		}
	}
	logging.InitLogger(opts)

	return cfg, nil
}

func newCompatibilityEvaluator(ctx context.Context, cfg *config.Config) (*compatibility.Evaluator, error) {
	completer, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	labels := openfda.NewClient(cfg.OpenFDABaseURL, cfg.OpenFDAAPIKey, cfg.UpstreamTimeout)
	return compatibility.NewEvaluator(labels, completer), nil
}

func newAlternativesEvaluator(ctx context.Context, cfg *config.Config) (*alternatives.Evaluator, error) {
	completer, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	search := pubmed.NewClient(pubmed.Options{
		BaseURL: cfg.NCBIBaseURL,
		APIKey:  cfg.NCBIAPIKey,
		Tool:    cfg.NCBITool,
		Email:   cfg.NCBIEmail,
		Timeout: cfg.UpstreamTimeout,
	})
	return alternatives.NewEvaluator(search, completer, alternatives.Options{
		Min:        cfg.AlternativesMin,
		Max:        cfg.AlternativesMax,
		RetryDelay: cfg.ResearchRetryDelay,
		DefaultK:   cfg.ResearchResults,
	}), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false, false)
			if err != nil {
				return err
			}
			defer logging.Close()
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateCredentials(); err != nil {
		logging.Error("Invalid credentials configuration", "error", err)
		return err
	}

	checker, err := newCompatibilityEvaluator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	suggester, err := newAlternativesEvaluator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	store := patients.NewStore(cfg.PatientsFile, cfg.PatientsIDColumn)
	sched := scheduler.NewScheduler(store, cfg.PatientsReloadAt, cfg.PatientsStaleAfter)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	healthOpts := health.Options{
		LLMProvider: cfg.LLMProvider,
		LLMModel:    cfg.LLMModel,
		StartTime:   time.Now(),
		StaleAfter:  cfg.PatientsStaleAfter,
	}
	if cfg.PatientsReloadAt != "" {
		healthOpts.NextRun = sched.NextRun
	}

	h := handlers.NewHTTPHandler(checker, suggester, store, validation.NewValidator(), health.NewHealthChecker(store, healthOpts))
	srv := server.NewServer(cfg, h)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("Server failed to start", "error", err)
		}
		return err
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func checkCmd(verbose *bool) *cobra.Command {
	var drug, allergies, conditions, meds string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate whether a drug is compatible with a patient context",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true, *verbose)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			if err := validation.NewValidator().ValidateDrugName(drug); err != nil {
				return err
			}

			evaluator, err := newCompatibilityEvaluator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			report, err := evaluator.Check(cmd.Context(), compatibility.Request{
				Drug:        drug,
				Allergies:   validation.SplitList(allergies),
				Conditions:  validation.SplitList(conditions),
				OngoingMeds: validation.SplitList(meds),
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"input":        report.Input,
				"result":       report.Result,
				"label_status": report.LabelStatus,
			})
		},
	}

	cmd.Flags().StringVar(&drug, "drug", "", "proposed drug (required)")
	cmd.Flags().StringVar(&allergies, "allergies", "", "comma-separated allergies")
	cmd.Flags().StringVar(&conditions, "conditions", "", "comma-separated conditions")
	cmd.Flags().StringVar(&meds, "meds", "", "comma-separated ongoing medications")
	_ = cmd.MarkFlagRequired("drug")
	return cmd
}

func alternativesCmd(verbose *bool) *cobra.Command {
	var issue, current, hint string
	var k int

	cmd := &cobra.Command{
		Use:   "alternatives",
		Short: "Suggest literature-backed alternatives for a clinical issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if issue == "" && hint == "" {
				return alternatives.ErrMissingQuery
			}

			cfg, err := loadConfig(true, *verbose)
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			evaluator, err := newAlternativesEvaluator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			result, err := evaluator.Suggest(cmd.Context(), alternatives.Request{
				Issue:         issue,
				CurrentOption: current,
				SearchHint:    hint,
				K:             k,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"alternatives": result.Alternatives,
				"articles":     result.Articles,
				"query":        result.Query,
				"retried":      result.Retried,
			})
		},
	}

	cmd.Flags().StringVar(&issue, "issue", "", "clinical issue to address")
	cmd.Flags().StringVar(&current, "current", "", "current treatment option")
	cmd.Flags().StringVar(&hint, "hint", "", "PubMed search hint, used instead of the issue")
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of articles to retrieve (default RESEARCH_RESULTS)")
	return cmd
}

func patientCmd(verbose *bool) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Look up one patient row by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true, *verbose)
			if err != nil {
				return err
			}
			return lookupPatient(cmd.OutOrStdout(), cfg, id)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "patient id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func lookupPatient(w io.Writer, cfg *config.Config, id string) error {
	if err := validation.NewValidator().ValidatePatientID(id); err != nil {
		return err
	}

	store := patients.NewStore(cfg.PatientsFile, cfg.PatientsIDColumn)
	if err := store.Reload(); err != nil {
		return err
	}

	record, err := store.Lookup(id)
	if errors.Is(err, patients.ErrPatientNotFound) {
		return fmt.Errorf("no patient with id %q in %s", id, cfg.PatientsFile)
	}
	if err != nil {
		return err
	}
	return printJSON(w, record)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
