package config

// Config is the on-disk configuration. All durations are Go duration
// strings (e.g. "500ms", "5s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Dispatch DispatchConfig `json:"dispatch"`
	Logging  LoggingConfig  `json:"logging,omitempty"`

	// Storage enables the optional delivery history store.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Watch configures daemon mode. Ignored by one-shot sends.
	Watch *WatchConfig `json:"watch,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// MessagesPerSec caps outgoing API calls. 0 means the client default.
	MessagesPerSec int `json:"messages_per_sec,omitempty"`
}

// DispatchConfig mirrors the fields of one delivery run.
//
// Defaults (when fields are omitted/zero):
//   - max_files_per_group: 10
//   - retry_attempts: 3
//   - retry_delay: "5s"
//   - group_pacing: "1s"
//   - parse_mode: "HTML"
type DispatchConfig struct {
	ChatID  int64  `json:"chat_id"`
	TopicID int    `json:"topic_id,omitempty"`
	Message string `json:"message"`

	// Files is a glob pattern resolved to an ordered file list before the
	// engine runs. Empty means message-only.
	Files string `json:"files,omitempty"`

	MaxFilesPerGroup int `json:"max_files_per_group,omitempty"`

	// RetryAttempts is a pointer so an explicit 0 is distinguishable from
	// an omitted field: omitted defaults to 3, explicit 0 is rejected.
	RetryAttempts *int   `json:"retry_attempts,omitempty"`
	RetryDelay    string `json:"retry_delay,omitempty"`

	// GroupPacing is the wait between consecutive file groups.
	GroupPacing string `json:"group_pacing,omitempty"`

	ParseMode string `json:"parse_mode,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"` // nil defaults to true
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the optional delivery history store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./telesend_history" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// WatchConfig controls daemon mode.
//
// Schedule accepts the forms "cron:*/5 * * * *", "interval:30m", a bare
// cron expression, or a bare duration. Empty means trigger on file events
// only.
type WatchConfig struct {
	Schedule string `json:"schedule,omitempty"`

	// Debounce is how long the watcher waits after the last file event
	// before dispatching, so half-written files settle. Default "2s".
	Debounce string `json:"debounce,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}
