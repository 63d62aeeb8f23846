package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/gophjournal/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. JOURNAL_TOKEN_SECRET.
const EnvPrefix = "JOURNAL"

// Flags handled by the server. Short forms only, like the rest of our tools:
//
//	-a string   HTTP bind address
//	-g string   gRPC health bind address
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-k string   encryption keys, id:base64[,id:base64...]
//	-i string   active encryption key id
//	-r string   redis URL for unlock throttling
//	-m string   RabbitMQ URL for security events
//	-l string   log format: json, text, zap, zap-dev
var serverFlags = []string{"-a", "-g", "-d", "-s", "-k", "-i", "-r", "-m", "-l"}

// Load builds a Config from args (usually os.Args[1:]). envFile is loaded
// with godotenv when it exists; variables already set in the environment win.
func Load(args []string, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Defaults())

	if path := flagx.ConfigPath(args); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, args); err != nil {
		return nil, err
	}

	cfg := &Config{}
	// viper's default hooks decode "15m" durations and "a,b" lists
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// LoadConfig is Load over the process arguments and ./.env. It panics on a
// malformed configuration since the server cannot start without one.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:], ".env")
	if err != nil {
		panic(err)
	}
	return cfg
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	rv := reflect.ValueOf(d)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		key := rt.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		v.SetDefault(key, rv.Field(i).Interface())
	}
}

func bindFlags(v *viper.Viper, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	keys := map[string]string{
		"a": "http_addr",
		"g": "grpc_addr",
		"d": "database_dsn",
		"s": "token_secret",
		"k": "encryption_keys",
		"i": "active_key_id",
		"r": "redis_url",
		"m": "rabbitmq_url",
		"l": "log_format",
	}
	values := make(map[string]*string, len(keys))
	for name, key := range keys {
		values[name] = fs.String(name, "", key)
	}

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	// only flags given explicitly override lower layers
	fs.Visit(func(f *flag.Flag) {
		v.Set(keys[f.Name], *values[f.Name])
	})
	return nil
}
