package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulyokota/feedforward/internal/llm"
	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/worker"
)

var (
	extractInput   string
	extractOutput  string
	extractWorkers int
	extractRPS     float64
	extractTimeout time.Duration
)

// rawConversation is the extract command's input shape: one support
// conversation before classification.
type rawConversation struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	IntercomURL    string `json:"intercom_url,omitempty"`
	Email          string `json:"email,omitempty"`
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Classify raw conversations into theme records",
	Long: `Extract sends raw conversation text to the configured LLM provider and
produces the theme records that 'feedforward run' ingests. Each record
carries the issue signature, product area, component, user intent,
symptoms, and a verbatim excerpt.

Conversations that fail extraction are reported and skipped; the rest
of the batch is still written.

Example:
  feedforward extract --input conversations.json --output themes.json
  feedforward extract --input conversations.json --llm-provider anthropic`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractInput, "input", "", "raw conversations JSON file, or - for stdin (required)")
	extractCmd.Flags().StringVar(&extractOutput, "output", "-", "theme records output path, or - for stdout")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 4, "concurrent extraction workers")
	extractCmd.Flags().Float64Var(&extractRPS, "rps", 2, "extraction requests per second")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 30*time.Minute, "overall extraction timeout")
	extractCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic)")
	extractCmd.Flags().StringVar(&llmModel, "llm-model", "", "chat model for extraction")

	_ = extractCmd.MarkFlagRequired("input")
}

type extractJob struct {
	extractor llm.Extractor
	limiter   *worker.Limiter
	request   llm.ExtractRequest
}

type extractResult struct {
	conversationID string
	record         *model.ThemeRecord
	err            error
}

func (r extractResult) GetError() error { return r.err }

func (j extractJob) Execute(ctx context.Context) worker.Result {
	if err := j.limiter.Wait(ctx, j.extractor.Name()); err != nil {
		return extractResult{conversationID: j.request.ConversationID, err: err}
	}
	record, err := j.extractor.Extract(ctx, j.request)
	return extractResult{conversationID: j.request.ConversationID, record: record, err: err}
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = llmProvider
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if err := resolveAPIKey(cfg); err != nil {
		return err
	}

	extractor, err := llm.NewExtractor(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return err
	}
	if extractor == nil {
		return fmt.Errorf("extraction requires an LLM provider")
	}

	conversations, err := loadConversations(extractInput)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Extracting %d conversations with %s\n", len(conversations), extractor.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	limiter := worker.NewLimiter(extractRPS, 1)
	pool := worker.NewPool(ctx, extractWorkers)
	pool.Start()
	for _, c := range conversations {
		pool.Submit(extractJob{
			extractor: extractor,
			limiter:   limiter,
			request: llm.ExtractRequest{
				ConversationID: c.ConversationID,
				Text:           c.Text,
				IntercomURL:    c.IntercomURL,
				Email:          c.Email,
			},
		})
	}

	var records []model.ThemeRecord
	failures := 0
	for _, r := range pool.Wait() {
		result := r.(extractResult)
		if result.err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.conversationID, result.err)
			continue
		}
		records = append(records, *result.record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ConversationID < records[j].ConversationID
	})

	if err := writeRecords(extractOutput, records); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Extracted %d records (%d failed)\n", len(records), failures)
	return nil
}

func loadConversations(path string) ([]rawConversation, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read conversations: %w", err)
	}

	var conversations []rawConversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return conversations, nil
}

func writeRecords(path string, records []model.ThemeRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}
