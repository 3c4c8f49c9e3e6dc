package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Jurisdiction.DefaultPreset != "standard" {
		t.Fatalf("unexpected default preset: %s", AppConfig.Jurisdiction.DefaultPreset)
	}
	if AppConfig.Consensus.RetryMaxAttempts != 3 {
		t.Fatalf("unexpected retry max attempts: %d", AppConfig.Consensus.RetryMaxAttempts)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("testnet")
	if AppConfig.Consensus.RetryMaxAttempts != 5 {
		t.Fatalf("expected retry_max_attempts 5, got %d", AppConfig.Consensus.RetryMaxAttempts)
	}
	if AppConfig.Jurisdiction.DefaultPreset != "fast" {
		t.Fatalf("expected default preset fast override")
	}
}
