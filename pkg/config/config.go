// Package config builds the run configuration from a .env file, an optional
// YAML config file, environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	SinkExpenseServer = "expense-server"
	SinkYNAB          = "ynab"
)

// DefaultServeInterval is the time between scheduled runs of serve.
const DefaultServeInterval = time.Hour

type SplitwiseConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	UserID            int64   `mapstructure:"user_id"`
	GroupIDs          []int64 `mapstructure:"group_ids"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type StoreConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type ClassifierConfig struct {
	URL      string        `mapstructure:"url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type HeartbeatConfig struct {
	URL string `mapstructure:"url"`
}

type FilterConfig struct {
	SettlementDescription string `mapstructure:"settlement_description"`
}

type YNABConfig struct {
	Token     string `mapstructure:"token"`
	BudgetID  string `mapstructure:"budget_id"`
	AccountID string `mapstructure:"account_id"`
}

type ServeConfig struct {
	Addr     string        `mapstructure:"addr"`
	Interval time.Duration `mapstructure:"interval"`
}

// Config is built once at startup and passed to every constructor.
type Config struct {
	Splitwise      SplitwiseConfig  `mapstructure:"splitwise"`
	Store          StoreConfig      `mapstructure:"store"`
	Classifier     ClassifierConfig `mapstructure:"classifier"`
	Heartbeat      HeartbeatConfig  `mapstructure:"heartbeat"`
	Filter         FilterConfig     `mapstructure:"filter"`
	YNAB           YNABConfig       `mapstructure:"ynab"`
	Serve          ServeConfig      `mapstructure:"serve"`
	Sink           string           `mapstructure:"sink"`
	FetchLimit     int              `mapstructure:"fetch_limit"`
	ReadOnly       bool             `mapstructure:"read_only"`
	Debug          bool             `mapstructure:"debug"`
	Workers        int              `mapstructure:"workers"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
	DedupFailOpen  bool             `mapstructure:"dedup_fail_open"`
}

var defaults = map[string]interface{}{
	"splitwise.base_url":            "https://secure.splitwise.com/api/v3.0",
	"classifier.cache_ttl":          time.Hour,
	"filter.settlement_description": "Settle all balances",
	"sink":                          SinkExpenseServer,
	"fetch_limit":                   100,
	"workers":                       1,
	"request_timeout":               30 * time.Second,
	"dedup_fail_open":               true,
	"serve.addr":                    "0.0.0.0:3000",
	"serve.interval":                DefaultServeInterval,
}

// envs maps config keys to the environment variables that set them.
var envs = map[string]string{
	"splitwise.api_key":             "SPLITWISE_API_KEY",
	"splitwise.base_url":            "SPLITWISE_BASE_URL",
	"splitwise.user_id":             "SPLITWISE_USER_ID",
	"splitwise.group_ids":           "SPLITWISE_GROUP_IDS",
	"splitwise.requests_per_second": "SPLITWISE_REQUESTS_PER_SECOND",
	"store.host":                    "HOST",
	"store.port":                    "PORT",
	"classifier.url":                "CLASSIFIER_URL",
	"classifier.cache_ttl":          "CLASSIFIER_CACHE_TTL",
	"heartbeat.url":                 "LIVENESS_URL",
	"filter.settlement_description": "SETTLEMENT_DESCRIPTION",
	"ynab.token":                    "YNAB_TOKEN",
	"ynab.budget_id":                "YNAB_BUDGET_ID",
	"ynab.account_id":               "YNAB_ACCOUNT_ID",
	"serve.addr":                    "SERVE_ADDR",
	"serve.interval":                "SERVE_INTERVAL",
	"sink":                          "SINK",
	"fetch_limit":                   "FETCH_LIMIT",
	"read_only":                     "READ_ONLY",
	"debug":                         "DEBUG",
	"workers":                       "WORKERS",
	"request_timeout":               "REQUEST_TIMEOUT",
	"dedup_fail_open":               "DEDUP_FAIL_OPEN",
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"read-only":  "read_only",
	"debug":      "debug",
	"limit":      "fetch_limit",
	"workers":    "workers",
	"group":      "splitwise.group_ids",
	"sink":       "sink",
	"addr":       "serve.addr",
	"interval":   "serve.interval",
	"heartbeat":  "heartbeat.url",
	"classifier": "classifier.url",
}

// Build loads the configuration. cfgFile may be empty, in which case
// splitsync.yaml is looked up in the working directory; flags may be nil.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for k, env := range envs {
		if err := v.BindEnv(k, env); err != nil {
			return nil, err
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("splitsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Classifier.URL == "" && cfg.Store.Host != "" {
		cfg.Classifier.URL = "http://" + net.JoinHostPort(cfg.Store.Host, "3001")
	}
	return &cfg, nil
}

// StoreURL is the base URL of the expense server.
func (c *Config) StoreURL() string {
	host := c.Store.Host
	if c.Store.Port != "" {
		host = net.JoinHostPort(host, c.Store.Port)
	}
	return "http://" + host
}

// Validate reports every missing or invalid option at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Splitwise.APIKey == "" {
		problems = append(problems, "splitwise api key is required (SPLITWISE_API_KEY)")
	}
	if c.Splitwise.UserID == 0 {
		problems = append(problems, "splitwise user id is required (SPLITWISE_USER_ID)")
	}
	if c.Classifier.URL == "" {
		problems = append(problems, "classifier url is required (CLASSIFIER_URL)")
	}
	switch c.Sink {
	case SinkExpenseServer:
		if c.Store.Host == "" {
			problems = append(problems, "expense server host is required (HOST)")
		}
	case SinkYNAB:
		if c.YNAB.Token == "" || c.YNAB.BudgetID == "" || c.YNAB.AccountID == "" {
			problems = append(problems, "ynab sink needs YNAB_TOKEN, YNAB_BUDGET_ID and YNAB_ACCOUNT_ID")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown sink %q", c.Sink))
	}
	if c.FetchLimit <= 0 {
		problems = append(problems, "fetch limit must be positive")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
