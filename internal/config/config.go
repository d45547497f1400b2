package config

import (
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`

	// Confirmation/redirect TTL in seconds, keyed as the original mail
	// properties file did. 0 means "use default" (3600).
	Duration int `yaml:"duration"`

	SweepInterval    time.Duration `yaml:"sweep_interval"`    // continuation registry sweep
	SchedulerWorkers int           `yaml:"scheduler_workers"` // worker pool size
	RedirectOrigin   string        `yaml:"redirect_origin"`   // default post-confirmation redirect

	JwtTTL time.Duration `yaml:"jwt_ttl"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

type Private struct {
	JwtKey string `yaml:"jwt_key"`
	Pg     Pg     `yaml:"pg"`
	Email  Email  `yaml:"email"`
}

type Pg struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname"`
}

type Email struct {
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"` // seconds
}

// ConfirmationTTL returns the configured confirmation window.
func (c *Config) ConfirmationTTL() time.Duration {
	if c.Public.Duration <= 0 {
		return time.Hour
	}
	return time.Duration(c.Public.Duration) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	if c.Public.SweepInterval <= 0 {
		return 15 * time.Minute
	}
	return c.Public.SweepInterval
}

func (c *Config) SchedulerWorkers() int {
	if c.Public.SchedulerWorkers <= 0 {
		return 8
	}
	return c.Public.SchedulerWorkers
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

func (c *Config) JwtTTL() time.Duration {
	if c.Public.JwtTTL <= 0 {
		return 24 * time.Hour
	}
	return c.Public.JwtTTL
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	return &Config{public, private}
}
