// Package config loads settings from .env, an optional YAML file and the
// process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeTesting     = "testing"
	ModeProduction  = "production"
)

type Config struct {
	Mode      string        `yaml:"mode"`
	Addr      string        `yaml:"addr"`
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	DB        DB            `yaml:"db"`
	Mail      Mail          `yaml:"mail"`
	Queue     Queue         `yaml:"queue"`
	RateLimit RateLimit     `yaml:"rate_limit"`
}

type DB struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Mail struct {
	Provider       string `yaml:"provider"`
	From           string `yaml:"from"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	ResendAPIKey   string `yaml:"resend_api_key"`
	SMTP           SMTP   `yaml:"smtp"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Queue struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
	Workers  int    `yaml:"workers"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func Default() Config {
	return Config{
		Mode: ModeDevelopment,
		Addr: ":3002",
		DB:   DB{Driver: "sqlite", DSN: "rdolist.db"},
		Mail: Mail{
			Provider: "log",
			From:     "RDoList <no-reply@rdolist.local>",
			SMTP:     SMTP{Port: 587},
		},
		Queue: Queue{
			Backend:  "memory",
			RedisURL: "redis://localhost:6379/0",
			Key:      "rdolist:mail",
			Workers:  2,
		},
		RateLimit: RateLimit{RPS: 5, Burst: 10},
	}
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"MODE":                &c.Mode,
		"ADDR":                &c.Addr,
		"SECRET_KEY":          &c.SecretKey,
		"DB_DRIVER":           &c.DB.Driver,
		"DSN":                 &c.DB.DSN,
		"MAIL_PROVIDER":       &c.Mail.Provider,
		"MAIL_DEFAULT_SENDER": &c.Mail.From,
		"SENDGRID_API_KEY":    &c.Mail.SendGridAPIKey,
		"RESEND_API_KEY":      &c.Mail.ResendAPIKey,
		"SMTP_HOST":           &c.Mail.SMTP.Host,
		"SMTP_USER":           &c.Mail.SMTP.User,
		"SMTP_PASS":           &c.Mail.SMTP.Password,
		"QUEUE_BACKEND":       &c.Queue.Backend,
		"REDIS_URL":           &c.Queue.RedisURL,
		"QUEUE_KEY":           &c.Queue.Key,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SMTP_PORT":        &c.Mail.SMTP.Port,
		"QUEUE_WORKERS":    &c.Queue.Workers,
		"RATE_LIMIT_BURST": &c.RateLimit.Burst,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v, ok := os.LookupEnv("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeDevelopment, ModeTesting, ModeProduction:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}
	switch c.Mail.Provider {
	case "log", "smtp", "sendgrid", "resend":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	switch c.Queue.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue workers must be positive, got %d", c.Queue.Workers)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Mode == ModeProduction
}

// String renders the configuration with secrets masked.
func (c Config) String() string {
	return fmt.Sprintf("mode=%s addr=%s db=%s mail=%s queue=%s workers=%d secret_key=%s sendgrid=%s resend=%s",
		c.Mode, c.Addr, c.DB.Driver, c.Mail.Provider, c.Queue.Backend, c.Queue.Workers,
		mask(c.SecretKey), mask(c.Mail.SendGridAPIKey), mask(c.Mail.ResendAPIKey))
}

func mask(s string) string {
	if s == "" {
		return "<unset>"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
