package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version      string         `yaml:"version"`
	APIPrefix    string         `yaml:"apiPrefix"`
	FallbackPath string         `yaml:"fallbackPath"`
	Precache     []string       `yaml:"precache"`
	Limits       map[string]int `yaml:"limits"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
