package config

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
)

// Create new config instance
func NewConfig() *Config {
	return &Config{}
}

// Load configuration file in json format
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}

// Validate checks the loaded config for the fields the service cannot
// start without.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
