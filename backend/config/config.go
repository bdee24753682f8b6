// Package config assembles process configuration from defaults, an optional
// config file, environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"fmt"

	"github.com/okatkov/partyline/backend/roomcode"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	APIListenAddr string `mapstructure:"api_listen_addr"`
	WSListenAddr  string `mapstructure:"ws_listen_addr"`
	LogLevel      string `mapstructure:"log_level"`
	RoomCodeLen   int    `mapstructure:"room_code_len"`
}

func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("partyline", pflag.ContinueOnError)
	fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
	fs.StringP("ws-listen-addr", "w", ":8888", "websocket listen address")
	fs.StringP("log-level", "l", "debug", "log level")
	fs.Int("room-code-len", roomcode.DefaultLength, "room code length")
	fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse command line arguments: %w", err)
	}

	v := viper.New()
	v.SetDefault("api_listen_addr", ":8080")
	v.SetDefault("ws_listen_addr", ":8888")
	v.SetDefault("log_level", "debug")
	v.SetDefault("room_code_len", roomcode.DefaultLength)

	v.SetEnvPrefix("PARTYLINE")
	v.AutomaticEnv()

	if cfgFile, _ := fs.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Flags set on the command line win over file and env values.
	bind := map[string]string{
		"api_listen_addr": "api-listen-addr",
		"ws_listen_addr":  "ws-listen-addr",
		"log_level":       "log-level",
		"room_code_len":   "room-code-len",
	}
	for key, flag := range bind {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
