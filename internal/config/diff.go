package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GameChanged is true when any game tuning value differs.
	GameChanged bool
	// ThresholdChanged is true when the accuracy threshold differs.
	ThresholdChanged bool

	// PayrollRolesChanged is true when the per-role payouts differ.
	PayrollRolesChanged bool

	// RestartRequired lists top-level settings that changed but only take
	// effect after a restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	og, ng := old.Game, new.Game
	d.ThresholdChanged = og.AccuracyThreshold != ng.AccuracyThreshold
	d.GameChanged = d.ThresholdChanged ||
		og.Lives != ng.Lives ||
		og.MaxRounds != ng.MaxRounds ||
		og.AnswerTimeout != ng.AnswerTimeout ||
		og.RoundDelay != ng.RoundDelay ||
		og.Cooldown != ng.Cooldown ||
		og.BonusRollChance != ng.BonusRollChance ||
		og.Cues != ng.Cues ||
		!maps.Equal(og.Rewards, ng.Rewards)

	d.PayrollRolesChanged = !maps.Equal(old.Payroll.RoleRewards, new.Payroll.RoleRewards)
	if old.Payroll.Enabled != new.Payroll.Enabled || old.Payroll.Interval != new.Payroll.Interval {
		d.RestartRequired = append(d.RestartRequired, "payroll")
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !discordEqual(old.Discord, new.Discord) {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Content.Root != new.Content.Root {
		d.RestartRequired = append(d.RestartRequired, "content.root")
	}
	return d
}

func discordEqual(a, b DiscordConfig) bool {
	return a.Token == b.Token &&
		a.GuildID == b.GuildID &&
		a.GameChannelID == b.GameChannelID &&
		a.VoiceChannelID == b.VoiceChannelID &&
		a.CommandPrefix == b.CommandPrefix &&
		slices.Equal(a.StaffRoleIDs, b.StaffRoleIDs)
}
