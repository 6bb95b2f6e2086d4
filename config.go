package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type configStruct struct {
	HTTPPort         int    `yaml:"HTTPPort"`
	MetricsPort      int    `yaml:"MetricsPort"`
	DetectorURL      string `yaml:"DetectorURL"`
	ClusterURL       string `yaml:"ClusterURL"`
	SpeechURL        string `yaml:"SpeechURL"`
	MobilityURL      string `yaml:"MobilityURL"`
	WorkersNum       int    `yaml:"workersNum"`
	MaxSessions      int    `yaml:"MaxSessions"`
	WSIdleTimeoutMs  int    `yaml:"WSIdleTimeoutMs"`
	ClientTimeoutSec int    `yaml:"ClientTimeoutSec"`
}

func defaultConfig() configStruct {
	return configStruct{
		HTTPPort:         8080,
		MetricsPort:      8081,
		DetectorURL:      "http://127.0.0.1:8501",
		ClusterURL:       "http://127.0.0.1:8501",
		SpeechURL:        "http://127.0.0.1:8502",
		MobilityURL:      "http://127.0.0.1:8503",
		WorkersNum:       0,
		MaxSessions:      16,
		WSIdleTimeoutMs:  60000,
		ClientTimeoutSec: 30,
	}
}

// loadConfig reads the yaml config at path. A missing file is not an
// error, the defaults apply.
func loadConfig(path string) (configStruct, error) {
	config := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Config file not found, using defaults:", path)
			return config, nil
		}
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	return config, nil
}

func (c configStruct) clientTimeout() time.Duration {
	return time.Duration(c.ClientTimeoutSec) * time.Second
}

func (c configStruct) wsIdleTimeout() time.Duration {
	return time.Duration(c.WSIdleTimeoutMs) * time.Millisecond
}
