package config

// Config is the full feedbot configuration.
//
// Files may be JSON or YAML; both are decoded strictly so typos in keys are
// caught at load time instead of silently ignored.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Feeding   FeedingConfig   `json:"feeding"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Cleanup   *CleanupConfig  `json:"cleanup,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the sqlite persistence layer.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// FeedingConfig controls the reminder admission policy.
//
// Defaults (when fields are omitted/zero):
//   - max_active: 10
//   - min_lead: "5m"
//   - max_horizon: "168h" (7 days)
type FeedingConfig struct {
	MaxActive  int    `json:"max_active,omitempty"`
	MinLead    string `json:"min_lead,omitempty"`
	MaxHorizon string `json:"max_horizon,omitempty"`
	// Timezone is an IANA TZ used to interpret user time expressions,
	// e.g. "Europe/Moscow". Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

// BroadcastConfig controls the notification fanout pipeline.
type BroadcastConfig struct {
	Workers    int `json:"workers,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// CleanupConfig controls the retention sweep over old inactive reminders.
// If the section is omitted the sweep runs daily with a 30 day window.
type CleanupConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron spec or descriptor, e.g. "@daily" or "0 4 * * *".
	Schedule string `json:"schedule,omitempty"`
	// Retention is a Go duration string; inactive records older than this
	// are deleted. e.g. "720h" for 30 days.
	Retention string `json:"retention,omitempty"`
}
