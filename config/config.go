package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	ListenAddress   string `envconfig:"TIDEPOOL_ALERTS_SERVER_ADDRESS" default:":8080"`
	DefaultTimezone string `envconfig:"TIDEPOOL_ALERTS_DEFAULT_TIMEZONE" default:"UTC"`
}

func New() *Config {
	return &Config{}
}

func (c *Config) LoadFromEnv() error {
	return envconfig.Process("", c)
}

func NewFromEnv() (*Config, error) {
	cfg := New()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}
