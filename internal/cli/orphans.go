package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/orphan"
)

// orphansCmd represents the orphans command
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Inspect orphan pools",
	Long: `Orphan pools hold conversations whose groups failed the quality gate.
Pools accumulate across runs; once a pool reaches the minimum group
size it is promoted back through the gate on the next run.`,
}

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orphan pools and their accumulation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := model.DefaultConfig()
		if stateDir != "" {
			cfg.Store.Dir = stateDir
		}

		accumulator, err := orphan.NewAccumulator(filepath.Join(cfg.Store.Dir, "orphans.json"))
		if err != nil {
			return fmt.Errorf("open orphan pools: %w", err)
		}

		pools := accumulator.Pools()
		if len(pools) == 0 {
			fmt.Println("No orphan pools.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SIGNATURE\tCONVERSATIONS\tSTATE\tLAST UPDATED")
		for _, p := range pools {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
				p.Signature, p.AccumulatedCount,
				p.State(cfg.Grouping.MinGroupSize),
				p.LastUpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(orphansCmd)
	orphansCmd.AddCommand(orphansListCmd)
	orphansCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for orphan pools and signature equivalences")
}
