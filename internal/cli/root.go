package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "feedforward",
	Short: "Feedforward - support conversation theme grouping",
	Long: `Feedforward turns classified customer support conversations into
implementation-ready stories.

It groups conversations by issue signature, scores each group's
coherence across seven weighted signals, validates that the supporting
evidence is real, and creates or updates one story per canonical
signature. Groups that fail the quality gate accumulate in orphan pools
until enough conversations justify a story.

Every score is transparent: each signal reports its value, weight, and
the data behind it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for Feedforward.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("feedforward v0.3.2")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.feedforward/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.feedforward")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match FEEDFORWARD_*
	viper.SetEnvPrefix("FEEDFORWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindConfigEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindConfigEnv registers the nested config keys so AutomaticEnv can
// resolve them during Unmarshal. Viper only consults the environment
// for keys it already knows about.
func bindConfigEnv() {
	for _, key := range []string{
		"grouping.min_group_size",
		"grouping.confidence_threshold",
		"grouping.scrutiny_threshold",
		"grouping.auto_reject_threshold",
		"grouping.catch_all_signature",
		"llm.provider",
		"llm.model",
		"llm.embedding_model",
		"llm.api_key",
		"llm.base_url",
		"llm.timeout",
		"llm.max_tokens",
		"cache.enabled",
		"cache.dir",
		"cache.memory_ttl",
		"cache.disk_ttl",
		"store.dir",
		"store.ticket_db",
		"notify.slack_token",
		"notify.slack_channel",
		"concurrency.scoring_workers",
		"concurrency.embed_rps",
		"concurrency.embed_burst",
		"output.verbose",
	} {
		_ = viper.BindEnv(key)
	}
}
