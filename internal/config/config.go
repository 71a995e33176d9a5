// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads process configuration for the ensemble runtime.
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// placeholderAPIKey is substituted when no model credential is configured.
// Requests made with it will fail at the provider, but startup never does.
const placeholderAPIKey = "unset-api-key"

// Config holds the full runtime configuration.
type Config struct {
	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is recorded on the trace resource.
	ServiceVersion string `yaml:"service_version"`

	// Environment is the deployment environment (development, production).
	Environment string `yaml:"environment"`

	// TraceFile is the path the JSON trace file is written to at shutdown.
	TraceFile string `yaml:"trace_file"`

	// MaxMessages bounds the conversation loop.
	MaxMessages int `yaml:"max_messages"`

	// Model configures the LLM clients.
	Model ModelConfig `yaml:"model"`

	// Tracing selects telemetry export destinations and sampling. An empty
	// exporter list means a single file exporter writing to TraceFile.
	Tracing TracingConfig `yaml:"tracing"`

	// Credentials holds API keys, populated from the environment only.
	Credentials Credentials `yaml:"-"`
}

// ModelConfig configures the chat model clients.
type ModelConfig struct {
	// Name is the model identifier sent to the API.
	Name string `yaml:"name"`

	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML decodes the model section, parsing the timeout from its
// human-readable form (e.g. "30s"). Absent keys keep their current values.
func (m *ModelConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name    string `yaml:"name"`
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Name != "" {
		m.Name = raw.Name
	}
	if raw.BaseURL != "" {
		m.BaseURL = raw.BaseURL
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid model timeout %q: %w", raw.Timeout, err)
		}
		m.Timeout = d
	}
	return nil
}

// TracingConfig configures telemetry export and sampling.
type TracingConfig struct {
	// Exporters lists export destinations. Every completed span goes to
	// every configured exporter.
	Exporters []ExporterConfig `yaml:"exporters"`

	// Sampling controls which traces are recorded. Disabled samples
	// everything.
	Sampling SamplingConfig `yaml:"sampling"`
}

// ExporterConfig defines one telemetry export destination.
type ExporterConfig struct {
	// Type is one of "file", "console", "otlp", "otlp-http", "sqlite",
	// or "none".
	Type string `yaml:"type"`

	// Path is the output file for type=file, or the database path for
	// type=sqlite. A file exporter with no path writes to TraceFile.
	Path string `yaml:"path"`

	// Endpoint is the OTLP receiver address (type=otlp / otlp-http).
	Endpoint string `yaml:"endpoint"`

	// Headers are extra headers sent to the OTLP receiver.
	Headers map[string]string `yaml:"headers"`

	// Insecure disables TLS for OTLP exporters.
	Insecure bool `yaml:"insecure"`
}

// SamplingConfig controls trace sampling.
type SamplingConfig struct {
	// Enabled turns ratio sampling on.
	Enabled bool `yaml:"enabled"`

	// Rate is the fraction of traces to keep (0.0 - 1.0).
	Rate float64 `yaml:"rate"`

	// AlwaysSampleErrors keeps every trace that records an error.
	AlwaysSampleErrors bool `yaml:"always_sample_errors"`
}

// Credentials holds secrets read from the environment.
// They are never written to or read from the YAML file.
type Credentials struct {
	// ModelAPIKey authenticates the primary model client (GEMINI_API_KEY).
	ModelAPIKey string

	// ModelAPIKey2 authenticates the secondary model client (GEMINI_API_KEY_2).
	// Falls back to the primary key when unset.
	ModelAPIKey2 string

	// WeatherAPIKey authenticates the weather service (WEATHER_API_KEY).
	WeatherAPIKey string

	// SerpAPIKey authenticates the search service (SERP_API_KEY).
	SerpAPIKey string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServiceName:    "ensemble-team",
		ServiceVersion: "1.0",
		Environment:    "development",
		TraceFile:      "telemetry_output.json",
		MaxMessages:    25,
		Model: ModelConfig{
			Name:    "gemini-1.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
			Timeout: 60 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables. A missing file at the default path is not an error;
// an explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("ENSEMBLE_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("ENSEMBLE_TRACE_FILE"); v != "" {
		c.TraceFile = v
	}
	if v := os.Getenv("ENSEMBLE_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("ENSEMBLE_MODEL_BASE_URL"); v != "" {
		c.Model.BaseURL = v
	}

	c.Credentials.ModelAPIKey = os.Getenv("GEMINI_API_KEY")
	c.Credentials.ModelAPIKey2 = os.Getenv("GEMINI_API_KEY_2")
	c.Credentials.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	c.Credentials.SerpAPIKey = os.Getenv("SERP_API_KEY")

	// Missing model credentials degrade to a placeholder rather than
	// aborting startup. Tool credentials stay empty; the tools report
	// their absence as readable error strings.
	if c.Credentials.ModelAPIKey == "" {
		c.Credentials.ModelAPIKey = placeholderAPIKey
	}
	if c.Credentials.ModelAPIKey2 == "" {
		c.Credentials.ModelAPIKey2 = c.Credentials.ModelAPIKey
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name must not be empty")
	}
	if c.TraceFile == "" {
		return fmt.Errorf("trace_file must not be empty")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max_messages must be positive, got %d", c.MaxMessages)
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model timeout must be positive, got %s", c.Model.Timeout)
	}
	for i, e := range c.Tracing.Exporters {
		switch e.Type {
		case "file", "console", "otlp", "otlp-http", "sqlite", "none":
		default:
			return fmt.Errorf("exporter %d: unknown type %q", i, e.Type)
		}
	}
	if s := c.Tracing.Sampling; s.Enabled && (s.Rate < 0 || s.Rate > 1) {
		return fmt.Errorf("sampling rate must be in [0, 1], got %g", s.Rate)
	}
	return nil
}
