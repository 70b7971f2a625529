package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	NodeID          string        `mapstructure:"node_id"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Log       Log       `mapstructure:"log"`
	Redis     Redis     `mapstructure:"redis"`
	Transport Transport `mapstructure:"transport"`
	Auth      Auth      `mapstructure:"auth"`
}

type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Redis struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

type Transport struct {
	SendQueueSize  int           `mapstructure:"send_queue_size"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type Auth struct {
	Tokens []Token `mapstructure:"tokens"`
}

// Token binds a bearer token to a user id. Tokens are listed as entries
// rather than map keys because viper lowercases keys.
type Token struct {
	Token  string `mapstructure:"token"`
	UserID string `mapstructure:"user"`
}

// TokenTable returns the token to user id lookup.
func (a Auth) TokenTable() map[string]string {
	table := make(map[string]string, len(a.Tokens))
	for _, t := range a.Tokens {
		table[t.Token] = t.UserID
	}

	return table
}

func defaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":56000")
	v.SetDefault("node_id", "")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.channel", "relay")
	v.SetDefault("transport.send_queue_size", 256)
	v.SetDefault("transport.write_timeout", 10*time.Second)
	v.SetDefault("transport.pong_wait", 60*time.Second)
	v.SetDefault("transport.max_message_size", 1<<20)
	v.SetDefault("auth.tokens", []map[string]string{})
}

// Load reads the configuration from defaults, an optional file and RELAY_
// prefixed environment variables, in increasing order of precedence. A
// .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %q", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "viper.Unmarshal")
	}

	for i, t := range cfg.Auth.Tokens {
		if t.Token == "" || t.UserID == "" {
			return Config{}, errors.Newf("auth.tokens[%d]: token and user are required", i)
		}
	}

	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}

	return cfg, nil
}
