package config

import (
	"strings"
	"testing"
)

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("POSTGRES_DSN", "  "); err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Fatalf("blank value: err = %v", err)
	}
	if err := cfg.Require("DATASET_PATH", "70cityprice.csv"); err != nil {
		t.Fatalf("set value: err = %v", err)
	}
}

func TestLoadReadsEnv(t *testing.T) {
	t.Setenv("FETCH_RPS", "5")
	t.Setenv("MIRROR_ENABLED", "off")
	t.Setenv("MAIN_START_ROW", "x")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FetchRPS != 5 || cfg.MirrorEnabled || cfg.MainStartRow != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsEmptyRowWindow(t *testing.T) {
	t.Setenv("SIZE_START_ROW", "10")
	t.Setenv("SIZE_END_ROW", "10")
	if _, err := Load(); err == nil {
		t.Fatal("expected row window error")
	}
}
