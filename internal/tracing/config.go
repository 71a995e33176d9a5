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

package tracing

import (
	"time"
)

// Config holds telemetry configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Environment is recorded as deployment.environment on the resource.
	Environment string

	// Sampling configures trace sampling.
	Sampling SamplingConfig

	// Exporters configures export destinations. Every configured exporter
	// receives every completed span through its own batch processor.
	Exporters []ExporterConfig

	// BatchSize is the maximum number of spans per export batch (default: 512).
	BatchSize int

	// BatchInterval is how often to flush spans (default: 5s).
	BatchInterval time.Duration
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Enabled activates sampling (default: false - sample all).
	Enabled bool

	// Rate is the fraction of traces to sample (0.0 - 1.0).
	Rate float64

	// AlwaysSampleErrors samples all traces with errors.
	AlwaysSampleErrors bool
}

// ExporterConfig defines one export destination.
type ExporterConfig struct {
	// Type is the exporter type: "file", "console", "otlp", "otlp-http",
	// "sqlite", or "none".
	Type string

	// Path is the output file for type=file, or the database path for
	// type=sqlite.
	Path string

	// Endpoint is the OTLP receiver URL (for type=otlp / otlp-http).
	Endpoint string

	// Headers are additional HTTP headers for authentication.
	Headers map[string]string

	// Insecure disables TLS for OTLP exporters.
	Insecure bool
}

// DefaultConfig returns the configuration used when nothing is specified:
// everything sampled, one file exporter writing telemetry_output.json.
func DefaultConfig(serviceName, version string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    "development",
		Exporters: []ExporterConfig{
			{Type: "file", Path: "telemetry_output.json"},
		},
		BatchSize:     512,
		BatchInterval: 5 * time.Second,
	}
}
