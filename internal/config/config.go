package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string      `mapstructure:"mode"`
	Port       int         `mapstructure:"port"`
	StaticPath string      `mapstructure:"static_path"`
	ReadLimit  int64       `mapstructure:"read_limit"`
	SendBuffer int         `mapstructure:"send_buffer"`
	Secret     string      `mapstructure:"secret"`
	Exec       ExecConfig  `mapstructure:"exec"`
	Rooms      RoomsConfig `mapstructure:"rooms"`
}

// ExecConfig points at the remote execution service. The timeout is the
// only bound on a run; the engine itself enforces none.
type ExecConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RoomsConfig struct {
	// EvictEmpty drops a room once its last participant leaves.
	// Off by default: rooms linger like they always have.
	EvictEmpty bool `mapstructure:"evict_empty"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 1048576)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("exec.url", "https://emkc.org/api/v2/piston/execute")
	v.SetDefault("exec.timeout", "15s")
	v.SetDefault("rooms.evict_empty", false)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath)
	return &cfg, nil
}
