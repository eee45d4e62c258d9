package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr         string
	Port               string
	DatabasePath       string
	SessionSecret      string
	GinMode            string
	LogLevel           string
	SeedUserName       string
	SeedUserPassword   string
	ReminderWindow     time.Duration
	EstimatorIdleTTL   time.Duration
	CacheSweepInterval time.Duration
	LoginRatePerMinute int
	LoginBurst         int
	Timezone           string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "medipredict.db")
	v.SetDefault("session_secret", "medipredict-dev-secret")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("reminder_window", "30m")
	v.SetDefault("estimator_idle_ttl", "30m")
	v.SetDefault("cache_sweep_interval", "5m")
	v.SetDefault("login_rate_per_minute", 10)
	v.SetDefault("login_burst", 5)
	v.SetDefault("timezone", "Local")
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 环境变量名即键名的大写形式，例如 DATABASE_PATH、SESSION_SECRET。
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	port := strings.TrimSpace(v.GetString("port"))
	if port == "" {
		port = "8080"
	}

	listenAddr := strings.TrimSpace(v.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	cfg := AppConfig{
		ListenAddr:         listenAddr,
		Port:               port,
		DatabasePath:       strings.TrimSpace(v.GetString("database_path")),
		SessionSecret:      strings.TrimSpace(v.GetString("session_secret")),
		GinMode:            strings.TrimSpace(v.GetString("gin_mode")),
		LogLevel:           strings.TrimSpace(v.GetString("log_level")),
		SeedUserName:       strings.TrimSpace(v.GetString("seed_user_name")),
		SeedUserPassword:   strings.TrimSpace(v.GetString("seed_user_password")),
		ReminderWindow:     v.GetDuration("reminder_window"),
		EstimatorIdleTTL:   v.GetDuration("estimator_idle_ttl"),
		CacheSweepInterval: v.GetDuration("cache_sweep_interval"),
		LoginRatePerMinute: v.GetInt("login_rate_per_minute"),
		LoginBurst:         v.GetInt("login_burst"),
		Timezone:           strings.TrimSpace(v.GetString("timezone")),
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "medipredict.db"
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "medipredict-dev-secret"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "release"
	}

	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		return cfg, fmt.Errorf("unsupported gin mode %q", cfg.GinMode)
	}

	if cfg.ReminderWindow <= 0 {
		return cfg, fmt.Errorf("reminder window must be positive")
	}
	if cfg.EstimatorIdleTTL <= 0 || cfg.CacheSweepInterval <= 0 {
		return cfg, fmt.Errorf("estimator cache durations must be positive")
	}
	if cfg.LoginRatePerMinute <= 0 || cfg.LoginBurst <= 0 {
		return cfg, fmt.Errorf("login rate limit must be positive")
	}

	return cfg, nil
}

// Location 解析配置的时区，Local 或空值返回 time.Local
func (c AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
