package cli

import (
	"testing"

	"github.com/spf13/viper"
)

func TestBuildRunConfigLayersFileOverDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("grouping.min_group_size", 5)
	viper.Set("store.dir", "/var/lib/feedforward")
	viper.Set("concurrency.scoring_workers", 2)

	cfg, err := buildRunConfig()
	if err != nil {
		t.Fatalf("buildRunConfig: %v", err)
	}

	if cfg.Grouping.MinGroupSize != 5 {
		t.Errorf("MinGroupSize = %d, want 5", cfg.Grouping.MinGroupSize)
	}
	if cfg.Store.Dir != "/var/lib/feedforward" {
		t.Errorf("Store.Dir = %q, want /var/lib/feedforward", cfg.Store.Dir)
	}
	if cfg.Concurrency.ScoringWorkers != 2 {
		t.Errorf("ScoringWorkers = %d, want 2", cfg.Concurrency.ScoringWorkers)
	}

	// Keys the file does not set keep their defaults.
	if cfg.Grouping.ConfidenceThreshold <= 0 {
		t.Errorf("ConfidenceThreshold lost its default, got %.1f", cfg.Grouping.ConfidenceThreshold)
	}
}

func TestBuildRunConfigFlagsWinOverFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("grouping.min_group_size", 5)

	minGroupSize = 7
	defer func() { minGroupSize = 0 }()

	cfg, err := buildRunConfig()
	if err != nil {
		t.Fatalf("buildRunConfig: %v", err)
	}
	if cfg.Grouping.MinGroupSize != 7 {
		t.Errorf("MinGroupSize = %d, want flag value 7", cfg.Grouping.MinGroupSize)
	}
}
