package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/flagx"
	"github.com/dmitrijs2005/tastekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "10s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	Backend        string         `json:"backend"`
	DatabaseDSN    string         `json:"database_dsn"`
	GatewayURL     string         `json:"gateway_url"`
	TokenSecret    string         `json:"token_secret"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.Backend = c.Backend
	config.DatabaseDSN = c.DatabaseDSN
	config.GatewayURL = c.GatewayURL
	config.TokenSecret = c.TokenSecret
	config.RequestTimeout = time.Duration(c.RequestTimeout.Duration)
}
