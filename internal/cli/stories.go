package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/ticket"
)

// storiesCmd represents the stories command
var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "Inspect created stories",
}

var storiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stories ordered by canonical signature",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := model.DefaultConfig()
		if ticketDB != "" {
			cfg.Store.TicketDB = ticketDB
		}

		store, err := ticket.OpenSQLite(cfg.Store.TicketDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stories, err := store.List(context.Background())
		if err != nil {
			return fmt.Errorf("list stories: %w", err)
		}
		if len(stories) == 0 {
			fmt.Println("No stories.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CANONICAL SIGNATURE\tCONVERSATIONS\tEVIDENCE\tUPDATED")
		for _, s := range stories {
			evidence := "ok"
			if s.PoorEvidence {
				evidence = "poor"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				s.CanonicalSignature, len(s.ConversationIDs), evidence,
				s.LastUpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(storiesCmd)
	storiesCmd.AddCommand(storiesListCmd)
	storiesCmd.PersistentFlags().StringVar(&ticketDB, "db", "", "ticket database path")
}
