package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	DatabaseURL string
	StoriesPath string

	JudgeAPIKey  string
	JudgeBaseURL string
	JudgeModel   string
	JudgeTimeout time.Duration

	MaxAttempts  int // single-player question budget
	RoomCapacity int // 0 means unlimited

	HeartbeatTimeout time.Duration
	ReconnectGrace   time.Duration
	RoomTTL          time.Duration

	LogLevel  string
	LogPretty bool
}

// option describes one setting: its viper key (also the env var, upper-cased),
// its flag name and its default.
type option struct {
	key   string
	flag  string
	value string
	usage string
}

var options = []option{
	{"port", "port", "8080", "port to listen on"},
	{"database_url", "database-url", "", "postgres DSN for the game archive (optional)"},
	{"stories_path", "stories-path", "", "path to a stories JSON file (embedded catalog when empty)"},
	{"judge_api_key", "judge-api-key", "", "API key for the OpenAI-compatible judge (offline judge when empty)"},
	{"judge_base_url", "judge-base-url", "https://api.deepseek.com", "base URL of the judge API"},
	{"judge_model", "judge-model", "deepseek-chat", "chat model used by the judge"},
	{"judge_timeout", "judge-timeout", "30s", "time allowed for one judge verdict"},
	{"max_attempts", "max-attempts", "10", "questions allowed per single-player story"},
	{"room_capacity", "room-capacity", "0", "maximum members per room, 0 for unlimited"},
	{"heartbeat_timeout", "heartbeat-timeout", "90s", "silence after which a connection is treated as gone"},
	{"reconnect_grace", "reconnect-grace", "30s", "time a dropped player may reconnect into their slot"},
	{"room_ttl", "room-ttl", "1h", "idle time before rooms and single-player sessions are reaped"},
	{"log_level", "log-level", "info", "log level (debug, info, warn, error)"},
	{"log_pretty", "log-pretty", "true", "human readable console logs instead of JSON"},
}

// NewViper returns a viper instance reading the environment, with every
// default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for _, o := range options {
		v.SetDefault(o.key, o.value)
		_ = v.BindEnv(o.key)
	}
	return v
}

// BindFlags registers a flag per setting on fs and binds it to v, so an
// explicitly passed flag wins over the environment.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	for _, o := range options {
		fs.String(o.flag, o.value, fmt.Sprintf("%s (env: %s)", o.usage, strings.ToUpper(o.key)))
		_ = v.BindPFlag(o.key, fs.Lookup(o.flag))
	}
}

func Load() Config {
	return FromViper(NewViper())
}

func FromViper(v *viper.Viper) Config {
	return Config{
		Port:             getString(v, "port", "8080"),
		DatabaseURL:      v.GetString("database_url"),
		StoriesPath:      v.GetString("stories_path"),
		JudgeAPIKey:      v.GetString("judge_api_key"),
		JudgeBaseURL:     getString(v, "judge_base_url", "https://api.deepseek.com"),
		JudgeModel:       getString(v, "judge_model", "deepseek-chat"),
		JudgeTimeout:     getDuration(v, "judge_timeout", 30*time.Second),
		MaxAttempts:      getInt(v, "max_attempts", 10),
		RoomCapacity:     getInt(v, "room_capacity", 0),
		HeartbeatTimeout: getDuration(v, "heartbeat_timeout", 90*time.Second),
		ReconnectGrace:   getDuration(v, "reconnect_grace", 30*time.Second),
		RoomTTL:          getDuration(v, "room_ttl", time.Hour),
		LogLevel:         getString(v, "log_level", "info"),
		LogPretty:        getBool(v, "log_pretty", true),
	}
}

func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %q", c.Port)
	}
	if c.RoomCapacity < 0 {
		return fmt.Errorf("invalid room capacity: %d", c.RoomCapacity)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("invalid max attempts: %d", c.MaxAttempts)
	}
	// A submitter's socket is busy while its question is judged, so heartbeats
	// must be able to outlast the slowest verdict.
	if c.JudgeTimeout >= c.HeartbeatTimeout {
		return errors.New("judge timeout must be shorter than the heartbeat timeout")
	}
	return nil
}

func getString(v *viper.Viper, key, fallback string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return fallback
}

func getInt(v *viper.Viper, key string, fallback int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return i
	}
	return fallback
}

func getBool(v *viper.Viper, key string, fallback bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key))); err == nil {
		return b
	}
	return fallback
}

// getDuration accepts Go durations ("90s") and bare integers as seconds.
func getDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
