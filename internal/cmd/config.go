package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration loaded from yaml, with
// environment variables taking precedence for deploy-time values.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Game struct {
		FlushIntervalMS int    `yaml:"flush_interval_ms"`
		CheckpointPath  string `yaml:"checkpoint_path"`
		HostToken       string `yaml:"host_token"`
	} `yaml:"game"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine; env vars and defaults cover everything.
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Server.Port == "" {
		config.Server.Port = getEnv("PORT", "8080")
	}
	if config.NATS.URL == "" {
		config.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	}
	if config.Game.FlushIntervalMS <= 0 {
		config.Game.FlushIntervalMS = 1000
	}
	if config.Game.CheckpointPath == "" {
		config.Game.CheckpointPath = getEnv("SCORE_CHECKPOINT", "tapwar-scores.json")
	}
	if token := os.Getenv("HOST_TOKEN"); token != "" {
		config.Game.HostToken = token
	}

	return &config, nil
}

func (c *Config) flushInterval() time.Duration {
	return time.Duration(c.Game.FlushIntervalMS) * time.Millisecond
}
