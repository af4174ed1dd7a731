package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the local, process-level configuration: identity and endpoints.
// Every trading tunable lives in the dashboard and is refreshed each cycle.
type Config struct {
	Env struct {
		ApiEndpoint     string  `yaml:"api_endpoint"`
		BotId           string  `yaml:"bot_id"`
		BotToken        string  `yaml:"bot_token"`
		RpcEndpoint     string  `yaml:"rpc_endpoint"`
		PriceFeedUrl    string  `yaml:"price_feed_url"`
		PriceConversion float64 `yaml:"price_conversion"`
		CheckpointDir   string  `yaml:"checkpoint_dir"`
		Debug           bool    `yaml:"debug"`
	} `yaml:"env"`
}

const (
	DefaultRpcEndpoint = "https://polygon-rpc.com"

	// USD quote of the feed converted to the dashboard's display currency.
	DefaultPriceConversion = 0.87
)

var (
	ErrMissingApiEndpoint = errors.New("config: env.api_endpoint is required")
	ErrMissingBotId       = errors.New("config: env.bot_id is required")
	ErrMissingPriceFeed   = errors.New("config: env.price_feed_url is required")
)

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) validate() error {
	if c.Env.ApiEndpoint == "" {
		return ErrMissingApiEndpoint
	}
	if c.Env.BotId == "" {
		return ErrMissingBotId
	}
	if c.Env.PriceFeedUrl == "" {
		return ErrMissingPriceFeed
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Env.RpcEndpoint == "" {
		c.Env.RpcEndpoint = DefaultRpcEndpoint
	}
	if c.Env.PriceConversion == 0 {
		c.Env.PriceConversion = DefaultPriceConversion
	}
	if c.Env.CheckpointDir == "" {
		c.Env.CheckpointDir = "."
	}
}

// Path returns the config file location, overridable through the
// TRADING_BOT_CONFIG environment variable.
func Path() string {
	if fromEnv := os.Getenv("TRADING_BOT_CONFIG"); fromEnv != "" {
		return fromEnv
	}
	return "./prod.yml"
}
