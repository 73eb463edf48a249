package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/pipeline"
)

var (
	inputPath           string
	stateDir            string
	ticketDB            string
	minGroupSize        int
	confidenceThreshold float64
	runTimeout          time.Duration
	noCache             bool
	dryRun              bool
	schedule            string
	llmProvider         string
	llmModel            string
	embeddingModel      string
	scoringWorkers      int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of classified conversations into stories",
	Long: `Run executes one grouping pass over a batch of theme records:
- Promote orphan pools that reached the minimum group size
- Group records by normalized issue signature
- Score each group's coherence (semantic, intent, evidence signals)
- Gate on size, evidence quality, and confidence
- Create or update one story per canonical signature
- Accumulate failed groups in orphan pools for later runs

Example:
  feedforward run --input themes.json
  feedforward run --input - < themes.json
  feedforward run --input themes.json --llm-provider openai
  feedforward run --input themes.json --schedule "0 */6 * * *"`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Input and state flags
	runCmd.Flags().StringVar(&inputPath, "input", "", "theme records JSON file, or - for stdin (required)")
	runCmd.Flags().StringVar(&stateDir, "state-dir", "", "directory for orphan pools and signature equivalences")
	runCmd.Flags().StringVar(&ticketDB, "db", "", "ticket database path")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the embedding cache")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "score and gate without writing stories or orphan pools")

	// Gate flags
	runCmd.Flags().IntVar(&minGroupSize, "min-group-size", 0, "minimum conversations per story (0 = config default)")
	runCmd.Flags().Float64Var(&confidenceThreshold, "confidence-threshold", 0, "minimum confidence to pass the gate (0 = config default)")

	// Concurrency flags
	runCmd.Flags().IntVar(&scoringWorkers, "workers", 0, "concurrent scoring workers (0 = config default)")

	// LLM flags
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "embedding/extraction provider (openai, anthropic)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "", "chat model for extraction")
	runCmd.Flags().StringVar(&embeddingModel, "embedding-model", "", "embedding model for similarity signals")

	// Scheduling
	runCmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for repeated runs (e.g. \"0 */6 * * *\")")

	_ = runCmd.MarkFlagRequired("input")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig()
	if err != nil {
		return err
	}

	if schedule == "" {
		return executeOnce(cfg)
	}
	return executeScheduled(cfg)
}

// buildRunConfig layers flags over the config file and environment,
// which layer over the defaults.
func buildRunConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if verbose {
		cfg.Output.Verbose = true
	}

	if stateDir != "" {
		cfg.Store.Dir = stateDir
	}
	if ticketDB != "" {
		cfg.Store.TicketDB = ticketDB
	}
	if minGroupSize > 0 {
		cfg.Grouping.MinGroupSize = minGroupSize
	}
	if confidenceThreshold > 0 {
		cfg.Grouping.ConfidenceThreshold = confidenceThreshold
	}
	if scoringWorkers > 0 {
		cfg.Concurrency.ScoringWorkers = scoringWorkers
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if embeddingModel != "" {
		cfg.LLM.EmbeddingModel = embeddingModel
	}
	if err := resolveAPIKey(cfg); err != nil {
		return nil, err
	}

	if cfg.Notify.SlackToken == "" {
		cfg.Notify.SlackToken = os.Getenv("SLACK_BOT_TOKEN")
	}

	return cfg, nil
}

func executeOnce(cfg *model.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	return executeRun(ctx, cfg)
}

// executeScheduled runs the pipeline on a cron schedule until
// interrupted. Runs never overlap: a tick that arrives while a run is
// still in flight is skipped by the scheduler's job wrapper.
func executeScheduled(cfg *model.Config) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if err := executeRun(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "✗ scheduled run failed: %v\n", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	fmt.Fprintf(os.Stderr, "Scheduled runs: %s (Ctrl-C to stop)\n", schedule)
	c.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

func executeRun(ctx context.Context, cfg *model.Config) error {
	records, skipped, err := pipeline.LoadRecords(inputPath)
	if err != nil {
		return err
	}
	for _, rejectErr := range skipped {
		fmt.Fprintf(os.Stderr, "✗ skipped: %v\n", rejectErr)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d records (%d skipped)\n", len(records), len(skipped))
		fmt.Fprintf(os.Stderr, "State: %s\n", cfg.Store.Dir)
		fmt.Fprintln(os.Stderr)
	}

	if dryRun {
		return executeDryRun(ctx, cfg, records)
	}

	orchestrator, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := orchestrator.Run(ctx, records)
	printSummary(result)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	return nil
}

func printSummary(result *model.ProcessingResult) {
	if result == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Run Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Stories created:         %d\n", result.Created)
	fmt.Fprintf(os.Stderr, "  Stories updated:         %d\n", result.Updated)
	fmt.Fprintf(os.Stderr, "  Conversations orphaned:  %d\n", result.Orphaned)
	fmt.Fprintf(os.Stderr, "  Conversations rejected:  %d\n", result.Rejected)
	fmt.Fprintf(os.Stderr, "  Errors:                  %d\n", len(result.Errors))
	fmt.Fprintf(os.Stderr, "\n")

	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  ✗ %s (%s, %s): %s\n", e.ConversationID, e.Signature, e.Stage, e.Message)
	}
	if verbose {
		for _, out := range result.Outcomes {
			fmt.Fprintf(os.Stderr, "  %-9s %s (%d conversations, confidence %.1f)\n",
				out.Action, out.Signature, out.Conversations, out.Confidence)
		}
	}
}
