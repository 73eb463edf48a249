package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paulyokota/feedforward/internal/model"
	"github.com/paulyokota/feedforward/internal/orphan"
	"github.com/paulyokota/feedforward/internal/signature"
	"github.com/paulyokota/feedforward/internal/ticket"
)

// registryCmd represents the registry command
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage signature equivalences",
	Long: `The signature registry records which issue signatures describe the
same underlying issue. Equivalent signatures share one canonical
signature and therefore one story.

Equivalences are transitive: linking a → b when b → c already exists
routes a, b, and c to the same story.`,
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show registered equivalences",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}

		equivalences := registry.Equivalences()
		if len(equivalences) == 0 {
			fmt.Println("No equivalences registered.")
			return nil
		}

		sigs := make([]string, 0, len(equivalences))
		for sig := range equivalences {
			sigs = append(sigs, sig)
		}
		sort.Strings(sigs)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SIGNATURE\tCANONICAL")
		for _, sig := range sigs {
			fmt.Fprintf(w, "%s\t%s\n", sig, equivalences[sig])
		}
		return w.Flush()
	},
}

var registryLinkCmd = &cobra.Command{
	Use:     "link <signature> <canonical>",
	Aliases: []string{"rename"},
	Short:   "Mark two signatures as the same underlying issue",
	Long: `Link records that <signature> is equivalent to <canonical>. Future
runs route both to one story under the canonical signature.

Linking a signature to itself removes a previously registered
equivalence. Links that would create a cycle are rejected.

Example:
  feedforward registry link pinterest_auth_failure pinterest_oauth_token_refresh`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}

		original, canonical := args[0], args[1]
		if err := registry.RegisterEquivalence(original, canonical); err != nil {
			return fmt.Errorf("register equivalence: %w", err)
		}

		resolved := registry.GetCanonical(original)
		if resolved == signature.Normalize(original) {
			fmt.Printf("✓ Removed equivalence for %s\n", resolved)
		} else {
			fmt.Printf("✓ %s → %s\n", signature.Normalize(original), resolved)
		}
		return nil
	},
}

var registryReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile orphan pool counts against existing stories",
	Long: `Reconcile resolves every orphan pool's signature to its canonical form,
sums counts per canonical signature, and reports signatures whose
canonical form has no story yet. Counts are conserved: renaming a
signature moves its count, it never loses it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := openRegistry()
		if err != nil {
			return err
		}

		cfg := model.DefaultConfig()
		if stateDir != "" {
			cfg.Store.Dir = stateDir
		}
		if ticketDB != "" {
			cfg.Store.TicketDB = ticketDB
		}

		accumulator, err := orphan.NewAccumulator(filepath.Join(cfg.Store.Dir, "orphans.json"))
		if err != nil {
			return fmt.Errorf("open orphan pools: %w", err)
		}
		counts := make(map[string]int)
		for _, p := range accumulator.Pools() {
			counts[p.Signature] = p.AccumulatedCount
		}

		store, err := ticket.OpenSQLite(cfg.Store.TicketDB)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		stories, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list stories: %w", err)
		}
		storyMapping := make(map[string]string, len(stories))
		for _, s := range stories {
			storyMapping[s.CanonicalSignature] = s.ID
		}

		reconciled, orphans := registry.ReconcileCounts(counts, storyMapping)
		if len(reconciled) == 0 {
			fmt.Println("No orphan pool counts to reconcile.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CANONICAL SIGNATURE\tPOOLED CONVERSATIONS\tSTORY")
		canonicals := make([]string, 0, len(reconciled))
		for canonical := range reconciled {
			canonicals = append(canonicals, canonical)
		}
		sort.Strings(canonicals)
		for _, canonical := range canonicals {
			story := "none"
			if id, ok := storyMapping[canonical]; ok {
				story = id
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", canonical, reconciled[canonical], story)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if len(orphans) > 0 {
			fmt.Printf("\n%d signature(s) have no story yet:\n", len(orphans))
			for _, sig := range orphans {
				fmt.Printf("  %s\n", sig)
			}
		}
		return nil
	},
}

func openRegistry() (*signature.Registry, error) {
	cfg := model.DefaultConfig()
	if stateDir != "" {
		cfg.Store.Dir = stateDir
	}

	registry, err := signature.NewRegistry(filepath.Join(cfg.Store.Dir, "equivalences.json"))
	if err != nil {
		return nil, fmt.Errorf("open signature registry: %w", err)
	}
	return registry, nil
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryLinkCmd)
	registryCmd.AddCommand(registryReconcileCmd)
	registryCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for orphan pools and signature equivalences")
	registryReconcileCmd.Flags().StringVar(&ticketDB, "db", "", "ticket database path")
}
