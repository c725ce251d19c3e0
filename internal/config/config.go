package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// StoreConfig selects the entity store shared by every command.
type StoreConfig struct {
	Kind    string
	PGDSN   string
	Journal string
}

// Validate checks that the selected backend has what it needs.
func (c StoreConfig) Validate() error {
	switch c.Kind {
	case StoreMemory:
		if c.Journal == "" {
			return fmt.Errorf("memory store needs a journal path")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Kind, StoreMemory, StorePostgres)
	}
	return nil
}

// ProcessConfig holds configuration for event processing.
type ProcessConfig struct {
	Store           StoreConfig
	Input           string
	Manifest        string
	RPCURL          string
	StateName       string
	CheckpointEvery int
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// RegisterConfig holds configuration for manual data source registration.
type RegisterConfig struct {
	Store    StoreConfig
	Template string
	Address  string
	Block    uint64
	Context  map[string]string
	LogLevel string
}

// ShowConfig holds configuration for entity inspection.
type ShowConfig struct {
	Store      StoreConfig
	EntityType string
	ID         string
	LogLevel   string
}

// LoadProcess merges config file, environment variables, and flags into ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"manifest":         "./subgraph.yaml",
		"state-name":       "ledger",
		"checkpoint-every": 500,
		"max-retries":      5,
		"retry-backoff":    500 * time.Millisecond,
	})
	if err != nil {
		return ProcessConfig{}, err
	}

	cfg := ProcessConfig{
		Store:           storeConfig(v),
		Input:           v.GetString("in"),
		Manifest:        v.GetString("manifest"),
		RPCURL:          v.GetString("rpc"),
		StateName:       v.GetString("state-name"),
		CheckpointEvery: v.GetInt("checkpoint-every"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}
	return cfg, nil
}

// LoadRegister merges config file, environment variables, and flags into RegisterConfig.
func LoadRegister(cfgFile string, flags *pflag.FlagSet) (RegisterConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return RegisterConfig{}, err
	}

	cfg := RegisterConfig{
		Store:    storeConfig(v),
		Template: v.GetString("template"),
		Address:  v.GetString("address"),
		Block:    v.GetUint64("block"),
		Context:  getStringMap(v, "context"),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, nil
}

// LoadShow merges config file, environment variables, and flags into ShowConfig.
func LoadShow(cfgFile string, flags *pflag.FlagSet) (ShowConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return ShowConfig{}, err
	}

	cfg := ShowConfig{
		Store:      storeConfig(v),
		EntityType: v.GetString("type"),
		ID:         v.GetString("id"),
		LogLevel:   v.GetString("log-level"),
	}
	return cfg, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreMemory)
	v.SetDefault("journal", "./data/entities.jsonl")
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:    strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		PGDSN:   v.GetString("pg-dsn"),
		Journal: v.GetString("journal"),
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return cleanMap(typed)
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, item := range typed {
			out[k] = fmt.Sprintf("%v", item)
		}
		return cleanMap(out)
	case string:
		return splitPairs(typed)
	default:
		return nil
	}
}

func splitPairs(input string) map[string]string {
	input = strings.Trim(strings.TrimSpace(input), "[]")
	if input == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(input, ",") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return cleanMap(out)
}

func cleanMap(items map[string]string) map[string]string {
	out := make(map[string]string, len(items))
	for key, value := range items {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
