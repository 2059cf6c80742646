package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	NATS struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url"`
		Stream   string `yaml:"stream"`
		Consumer string `yaml:"consumer"`
	} `yaml:"nats"`

	Room struct {
		LeaveGraceSec   int `yaml:"leave_grace_sec"`
		EmptyRoomTTLSec int `yaml:"empty_room_ttl_sec"`
	} `yaml:"room"`

	Clients struct {
		ScoringURL   string `yaml:"scoring_url"`
		GuestbookURL string `yaml:"guestbook_url"`
	} `yaml:"clients"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides lets deployment env vars win over the config file.
func applyEnvOverrides(config *Config) {
	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.Clients.ScoringURL = getEnv("SCORING_URL", config.Clients.ScoringURL)
	config.Clients.GuestbookURL = getEnv("GUESTBOOK_URL", config.Clients.GuestbookURL)
	config.Room.LeaveGraceSec = getEnvAsInt("ROOM_LEAVE_GRACE_SEC", config.Room.LeaveGraceSec)
	config.Room.EmptyRoomTTLSec = getEnvAsInt("ROOM_EMPTY_TTL_SEC", config.Room.EmptyRoomTTLSec)
}
