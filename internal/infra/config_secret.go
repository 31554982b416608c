package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig matches the structure of secrets/coingecko.yaml
type SecretConfig struct {
	API struct {
		CoinGecko struct {
			APIKey string `yaml:"api_key"`
			Plan   string `yaml:"plan"` // demo | pro
		} `yaml:"coingecko"`
	} `yaml:"api"`
}

// LoadSecretConfig loads the API key from a separate yaml file.
// It returns error if file is missing (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	return &cfg, nil
}

// ApplySecrets copies secrets into cfg unless the environment already set a key.
func (c *Config) ApplySecrets(s *SecretConfig) {
	if s == nil || s.API.CoinGecko.APIKey == "" {
		return
	}
	if os.Getenv("DASHBOARD_API_KEY") != "" {
		return
	}
	c.API.APIKey = s.API.CoinGecko.APIKey
}
