package config

import (
	"fmt"
	"time"

	pkgconfig "teamboard/pkg/config"
)

// AuthConfig selects the authorization policy: "allow_all" or "role_based".
type AuthConfig struct {
	Policy string `yaml:"policy"`
}

type Config struct {
	Server   pkgconfig.ServerConfig   `yaml:"server"`
	Log      pkgconfig.LogConfig      `yaml:"log"`
	DB       pkgconfig.DBConfig       `yaml:"db"`
	Redis    pkgconfig.RedisConfig    `yaml:"redis"`
	MQ       pkgconfig.MQConfig       `yaml:"mq"`
	JWT      pkgconfig.JWTConfig      `yaml:"jwt"`
	Auth     AuthConfig               `yaml:"auth"`
	Agent    pkgconfig.AgentConfig    `yaml:"agent"`
	Calendar pkgconfig.CalendarConfig `yaml:"calendar"`
	Realtime pkgconfig.RealtimeConfig `yaml:"realtime"`
	Upload   pkgconfig.UploadConfig   `yaml:"upload"`
}

// Load merges base.yaml, <env>.yaml and secrets.env from dir, then applies
// environment overrides (生产环境使用) and fills defaults.
func Load(env, dir string) (*Config, error) {
	merged, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := pkgconfig.Decode(merged, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideAgentFromEnv(&cfg.Agent)
	pkgconfig.OverrideCalendarFromEnv(&cfg.Calendar)

	applyDefaults(&cfg)
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "5000"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 30 * 24 * time.Hour
	}
	if cfg.Auth.Policy == "" {
		cfg.Auth.Policy = "allow_all"
	}
	if cfg.Agent.Timeout == 0 {
		cfg.Agent.Timeout = 30 * time.Second
	}
	if cfg.Calendar.Timeout == 0 {
		cfg.Calendar.Timeout = 10 * time.Second
	}
	if cfg.Realtime.Channel == "" {
		cfg.Realtime.Channel = "teamboard:broadcast"
	}
	if cfg.Realtime.ClientBuffer <= 0 {
		cfg.Realtime.ClientBuffer = 64
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 5 << 20
	}
	if cfg.DB.SlowThreshold == 0 {
		cfg.DB.SlowThreshold = 200 * time.Millisecond
	}
}
