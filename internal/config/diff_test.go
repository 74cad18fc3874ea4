package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/dictee/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Discord.StaffRoleIDs = []string{"1"}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if d.GameChanged || d.LogLevelChanged || d.ThresholdChanged {
		t.Errorf("expected no changes, got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("expected no restart sections, got %v", d.RestartRequired)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_Game(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		mutate        func(*config.Config)
		wantThreshold bool
	}{
		{"threshold", func(c *config.Config) { c.Game.AccuracyThreshold = 80 }, true},
		{"lives", func(c *config.Config) { c.Game.Lives = 5 }, false},
		{"delay", func(c *config.Config) { c.Game.RoundDelay = time.Second }, false},
		{"reward range", func(c *config.Config) {
			c.Game.Rewards["A1"] = config.RewardRange{Low: 2, High: 4}
		}, false},
		{"cue", func(c *config.Config) { c.Game.Cues.Correct = "cues/yay.mp3" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old := baseConfig()
			new := baseConfig()
			tt.mutate(new)

			d := config.Diff(old, new)
			if !d.GameChanged {
				t.Error("expected GameChanged=true")
			}
			if d.ThresholdChanged != tt.wantThreshold {
				t.Errorf("ThresholdChanged: got %v, want %v", d.ThresholdChanged, tt.wantThreshold)
			}
		})
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Discord.StaffRoleIDs = []string{"1", "2"}
	new.Storage.PostgresDSN = "postgres://other"
	new.Content.Root = "/srv/audio"

	d := config.Diff(old, new)
	for _, want := range []string{"discord", "storage", "content.root"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired missing %q: %v", want, d.RestartRequired)
		}
	}
	if d.GameChanged {
		t.Error("GameChanged should be false")
	}
}

func TestDiff_Payroll(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	old.Payroll.RoleRewards = map[string]int{"booster": 500}
	new := baseConfig()
	new.Payroll.RoleRewards = map[string]int{"booster": 750}
	new.Payroll.Enabled = true

	d := config.Diff(old, new)
	if !d.PayrollRolesChanged {
		t.Error("expected PayrollRolesChanged=true")
	}
	if !slices.Contains(d.RestartRequired, "payroll") {
		t.Errorf("RestartRequired missing payroll: %v", d.RestartRequired)
	}
	if d.GameChanged {
		t.Error("GameChanged should be false")
	}
}
