// Package main implements the devsquad CLI: run a development task through
// the five-role squad, or index documents into the knowledge store.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/forgeworks/devsquad"
	"github.com/forgeworks/devsquad/config"
	"github.com/forgeworks/devsquad/core"
	"github.com/forgeworks/devsquad/logging"
	"github.com/forgeworks/devsquad/memory"
	"github.com/forgeworks/devsquad/model"
	"github.com/forgeworks/devsquad/model/anthropic"
	"github.com/forgeworks/devsquad/model/openai"
	"github.com/forgeworks/devsquad/orchestrator"
	"github.com/forgeworks/devsquad/persona"
	"github.com/forgeworks/devsquad/sandbox"
)

var (
	configPath string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devsquad",
	Short: "Run development tasks through a multi-agent squad",
	Long: `devsquad orchestrates a manager, two developers, a QA engineer and a
sandboxed executor over an event bus to carry a task from plan to verified
result.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(indexCmd)
}

// runCmd executes one task end to end.
var runCmd = &cobra.Command{
	Use:   "run \"task description\"",
	Short: "Run a task through the squad",
	Long: `Run a task through the squad until it is done, the retry budget is
exhausted or the turn budget is hit.

Examples:
  devsquad run "write a script that prints factorial(5)"
  DEVSQUAD_MODEL_PROVIDER=anthropic devsquad run "port the CSV report to JSON"`,
	Args: cobra.ExactArgs(1),
	RunE: runTask,
}

// indexCmd ingests documents into the knowledge store.
var indexCmd = &cobra.Command{
	Use:   "index <dir>",
	Short: "Index a directory of documents into the knowledge store",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	m, err := buildModel(cfg)
	if err != nil {
		return err
	}
	usage := model.NewUsageTracker()
	m = model.WithUsageTracking(model.WithRetry(m, model.WithMaxAttempts(cfg.Model.MaxRetries)), usage)

	exec, workDir, err := buildExecutor(cfg, logger)
	if err != nil {
		return err
	}

	store, err := buildMemory(cfg, logger)
	if err != nil {
		return err
	}

	personas := persona.Defaults()
	if cfg.PersonasFile != "" {
		if personas, err = persona.Load(cfg.PersonasFile); err != nil {
			return err
		}
	}

	var audit *os.File
	if cfg.Orchestrator.AuditFile != "" {
		audit, err = os.OpenFile(cfg.Orchestrator.AuditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open audit file: %w", err)
		}
		defer audit.Close()
	}

	squad := devsquad.New(m, exec, func(o *devsquad.Options) {
		o.Personas = personas
		o.Memory = store
		o.MemoryTopK = cfg.Memory.TopK
		o.MaxAttempts = cfg.Orchestrator.MaxAttempts
		o.MaxTurns = cfg.Orchestrator.MaxTurns
		o.WorkDir = workDir
		o.ExecTimeout = cfg.Sandbox.Timeout
		o.Usage = usage
		o.Logger = logger
		if audit != nil {
			o.Audit = audit
		}
	})

	res, runErr := squad.Run(cmd.Context(), args[0])
	printResult(cmd, res)
	return runErr
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, err := buildMemory(cfg, logger)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("memory backend %q cannot be indexed", cfg.Memory.Backend)
	}

	idx := memory.NewIndexer(store, func(o *memory.IndexerOptions) { o.Logger = logger })
	n, err := idx.IndexDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("indexed %d chunks from %s\n", n, args[0])
	return nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level := logging.LogLevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.New(level, cfg.Logging.Format, os.Stderr)
}

func buildModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxCompletionTokens = int64(cfg.Model.MaxTokens)
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.Temperature = cfg.Model.Temperature
			o.MaxTokens = int64(cfg.Model.MaxTokens)
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func buildExecutor(cfg *config.Config, logger logging.Logger) (core.Executor, string, error) {
	workDir := cfg.Sandbox.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "devsquad-*")
		if err != nil {
			return nil, "", fmt.Errorf("create workspace: %w", err)
		}
		workDir = dir
	} else if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}

	opts := []func(o *sandbox.Options){
		sandbox.WithTimeout(cfg.Sandbox.Timeout),
		sandbox.WithMaxOutputBytes(cfg.Sandbox.MaxOutputBytes),
		sandbox.WithLogger(logger),
	}
	switch cfg.Sandbox.Backend {
	case "docker":
		return sandbox.NewDockerExecutor(cfg.Sandbox.Image, opts...), workDir, nil
	case "process":
		return sandbox.NewProcessExecutor(opts...), workDir, nil
	default:
		return nil, "", fmt.Errorf("unknown sandbox backend %q", cfg.Sandbox.Backend)
	}
}

func buildMemory(cfg *config.Config, logger logging.Logger) (core.MemoryStore, error) {
	switch cfg.Memory.Backend {
	case "keyword":
		return memory.NewKeywordStore(), nil
	case "chromem":
		store, err := memory.NewChromemStore(memory.ChromemConfig{
			Path:           cfg.Memory.Path,
			ScoreThreshold: cfg.Memory.ScoreThreshold,
		}, func(o *memory.ChromemOptions) { o.Logger = logger })
		if err != nil {
			return nil, fmt.Errorf("open knowledge store: %w", err)
		}
		if cfg.Memory.DocsDir != "" {
			idx := memory.NewIndexer(store, func(o *memory.IndexerOptions) { o.Logger = logger })
			if _, err := idx.IndexDir(context.Background(), cfg.Memory.DocsDir); err != nil {
				return nil, fmt.Errorf("index %s: %w", cfg.Memory.DocsDir, err)
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func printResult(cmd *cobra.Command, res *orchestrator.Result) {
	if res == nil {
		return
	}
	for _, m := range res.Transcript {
		cmd.Printf("--- [%s] %s\n%s\n", m.Sender, m.Kind, m.Body)
	}
	cmd.Printf("\nstate: %s  turns: %d  attempts: %d\n", res.State, res.Turns, res.Attempts)
	if res.Usage.TotalTokens > 0 {
		cmd.Printf("tokens: prompt=%d completion=%d total=%d\n",
			res.Usage.PromptTokens, res.Usage.CompletionTokens, res.Usage.TotalTokens)
	}
}
