package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// EnvPrefix prefixes the environment variables and .env keys injectgen reads.
const EnvPrefix = "INJECTGEN_"

// Settings is the configuration of the injectgen services.
type Settings struct {
	Server  ServerSettings  `json:"server"`
	Store   StoreSettings   `json:"store"`
	Mongo   MongoSettings   `json:"mongo"`
	Redis   RedisSettings   `json:"redis"`
	Watch   WatchSettings   `json:"watch"`
	Logging LoggingSettings `json:"logging"`
	Etcd    EtcdOptions     `json:"etcd"`
	// ReloadEvery re-reads every source periodically while serving. Zero
	// disables periodic reloads.
	ReloadEvery Duration `json:"reloadEvery"`
}

type ServerSettings struct {
	Addr string `json:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `json:"mode"`
}

type StoreSettings struct {
	// Driver is "", "sqlite" or "mongodb". Empty disables the plan store.
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type MongoSettings struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

type RedisSettings struct {
	// Addr empty disables the listing cache.
	Addr     string   `json:"addr"`
	Password string   `json:"password"`
	DB       int      `json:"db"`
	TTL      Duration `json:"ttl"`
	Prefix   string   `json:"prefix"`
}

type WatchSettings struct {
	Dir      string `json:"dir"`
	Schedule string `json:"schedule"`
	Workers  int    `json:"workers"`
}

type LoggingSettings struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// DefaultSettings returns the settings used for keys no source sets.
func DefaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Addr: ":8080", Mode: "release"},
		Mongo:   MongoSettings{Database: "injectgen", Collection: "plans"},
		Redis:   RedisSettings{TTL: Duration(10 * time.Minute), Prefix: "injectgen:listing:"},
		Watch:   WatchSettings{Schedule: "@every 1m", Workers: 4},
		Logging: LoggingSettings{Level: "info", Format: "text"},
	}
}

// LoadSettings reads path (optional when empty), a .env file in the working
// directory and INJECTGEN_ environment variables. When the result names etcd
// endpoints, etcd is added as the last source.
func LoadSettings(path string) (Settings, *ReloadableConfiguration, error) {
	b := NewConfigurationBuilder()
	if path != "" {
		b.AddYamlFile(path)
	}
	b.AddDotenvFile(".env", EnvPrefix, true)
	b.AddEnvironmentVariables(EnvPrefix)

	cfg, err := b.BuildReloadable()
	if err != nil {
		return Settings{}, nil, err
	}
	var etcd EtcdOptions
	if err := cfg.Bind("etcd", &etcd); err == nil && len(etcd.Endpoints) > 0 {
		b.AddEtcd(etcd)
		if cfg, err = b.BuildReloadable(); err != nil {
			return Settings{}, nil, err
		}
	}

	s := DefaultSettings()
	if err := cfg.Bind("", &s); err != nil {
		return Settings{}, nil, err
	}
	return s, cfg, nil
}

// Duration decodes from a Go duration string or a number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(p)
	case float64:
		*d = Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("config: invalid duration %v", v)
	}
	return nil
}
