package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/gookit/validate"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAdminCode is used when ADMIN_CODE is not configured.
const DefaultAdminCode = "Admin2024"

type Config struct {
	TelegramToken string `mapstructure:"telegram_token" validate:"required"`
	AdminCode     string `mapstructure:"admin_code" validate:"required"`

	StorageBackend string `mapstructure:"storage_backend" validate:"required|in:sqlite,json"`
	DatabasePath   string `mapstructure:"database_path"`
	UsersFile      string `mapstructure:"users_file"`
	LogsFile       string `mapstructure:"logs_file"`

	TimezoneName string        `mapstructure:"timezone" validate:"required"`
	DailyTime    string        `mapstructure:"daily_time" validate:"required"`
	ReaskDelay   time.Duration `mapstructure:"reask_delay"`

	WebhookURL string `mapstructure:"webhook_url"`
	ServerPort string `mapstructure:"server_port" validate:"required"`

	APIUsername    string `mapstructure:"api_username"`
	APIPassword    string `mapstructure:"api_password"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`

	BackupDir  string `mapstructure:"backup_dir"`
	BackupTime string `mapstructure:"backup_time"`

	LogLevel  string `mapstructure:"log_level" validate:"required|in:trace,debug,info,warn,error"`
	LogPretty bool   `mapstructure:"log_pretty"`

	Timezone *time.Location `mapstructure:"-"`
}

var envBindings = map[string][]string{
	"telegram_token":  {"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"},
	"admin_code":      {"ADMIN_CODE"},
	"storage_backend": {"STORAGE_BACKEND"},
	"database_path":   {"DATABASE_PATH"},
	"users_file":      {"USERS_FILE"},
	"logs_file":       {"LOGS_FILE"},
	"timezone":        {"TIMEZONE"},
	"daily_time":      {"DAILY_TIME"},
	"reask_delay":     {"REASK_DELAY"},
	"webhook_url":     {"WEBHOOK_URL"},
	"server_port":     {"SERVER_PORT"},
	"api_username":    {"API_USERNAME"},
	"api_password":    {"API_PASSWORD"},
	"metrics_enabled": {"METRICS_ENABLED"},
	"backup_dir":      {"BACKUP_DIR"},
	"backup_time":     {"BACKUP_TIME"},
	"log_level":       {"LOG_LEVEL"},
	"log_pretty":      {"LOG_PRETTY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("admin_code", DefaultAdminCode)
	v.SetDefault("storage_backend", "sqlite")
	v.SetDefault("database_path", "./data/pillbot.db")
	v.SetDefault("users_file", "./data/bot_users.json")
	v.SetDefault("logs_file", "./data/bot_logs.json")
	v.SetDefault("timezone", "Asia/Tehran")
	v.SetDefault("daily_time", "12:00")
	v.SetDefault("reask_delay", "15m")
	v.SetDefault("server_port", "8080")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("backup_time", "03:30")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

// Load reads .env, an optional config file and the environment, in
// increasing order of precedence over the defaults.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct rules and resolves the timezone.
func (c *Config) Validate() error {
	vd := validate.Struct(c)
	if !vd.Validate() {
		return fmt.Errorf("invalid config: %s", vd.Errors.Error())
	}

	if _, _, err := ParseClock(c.DailyTime); err != nil {
		return fmt.Errorf("invalid DAILY_TIME: %w", err)
	}
	if c.BackupDir != "" {
		if _, _, err := ParseClock(c.BackupTime); err != nil {
			return fmt.Errorf("invalid BACKUP_TIME: %w", err)
		}
	}
	if c.ReaskDelay <= 0 {
		return errors.New("REASK_DELAY must be positive")
	}

	tz, err := time.LoadLocation(c.TimezoneName)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	c.Timezone = tz
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func (c *Config) UsesDefaultAdminCode() bool {
	return c.AdminCode == DefaultAdminCode
}

func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

func (c *Config) UsesWebhook() bool {
	return c.WebhookURL != ""
}
