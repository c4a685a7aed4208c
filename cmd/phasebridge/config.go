package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"phasebridge/logging"
	"phasebridge/ml"
	"phasebridge/native"
	"phasebridge/stream"
)

const defaultConfigPath = "phasebridge.yaml"

type Config struct {
	Artifacts ml.ArtifactConfig `yaml:"artifacts"`
	Native    struct {
		Library  string `yaml:"library"`
		Symbol   string `yaml:"symbol"`
		Sentinel *int32 `yaml:"sentinel"`
	} `yaml:"native"`
	Stream struct {
		OnMalformed string `yaml:"on_malformed"`
		Journal     string `yaml:"journal"`
	} `yaml:"stream"`
	Monitoring struct {
		Addr     string        `yaml:"addr"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"monitoring"`
	Log logging.Config `yaml:"log"`
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly; otherwise defaults apply.
func loadConfig(path string, explicit bool) (*Config, error) {
	var config Config
	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := normalizeConfig(&config); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &config, nil
}

func normalizeConfig(config *Config) error {
	if config.Artifacts.PreprocessorKind == "" {
		config.Artifacts.PreprocessorKind = ml.PreprocessorStandard
	}
	if config.Artifacts.PreprocessorPath == "" && config.Artifacts.PreprocessorKind != ml.PreprocessorIdentity {
		config.Artifacts.PreprocessorPath = "phases-scaler.json"
	}
	if config.Artifacts.ClassifierKind == "" {
		config.Artifacts.ClassifierKind = ml.ClassifierDecisionTree
	}
	if config.Artifacts.ClassifierPath == "" {
		config.Artifacts.ClassifierPath = "phases-model.json"
	}

	if config.Native.Library == "" {
		config.Native.Library = native.DefaultLibrary
	}
	if config.Native.Symbol == "" {
		config.Native.Symbol = native.DefaultSymbol
	}
	if config.Native.Sentinel == nil {
		sentinel := native.DefaultSentinel
		config.Native.Sentinel = &sentinel
	}

	if _, err := stream.ParsePolicy(config.Stream.OnMalformed); err != nil {
		return err
	}
	if config.Stream.OnMalformed == "" {
		config.Stream.OnMalformed = stream.FailFast.String()
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.File != "" {
		if config.Log.MaxSizeMB <= 0 {
			config.Log.MaxSizeMB = 100
		}
		if config.Log.MaxBackups <= 0 {
			config.Log.MaxBackups = 3
		}
		if config.Log.MaxAgeDays <= 0 {
			config.Log.MaxAgeDays = 28
		}
	}
	return nil
}
