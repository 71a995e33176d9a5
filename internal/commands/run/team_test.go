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

package run

import (
	"testing"

	"github.com/tombee/ensemble/internal/config"
)

func TestBuildTracingConfig_Defaults(t *testing.T) {
	cfg := config.Default()

	tcfg := buildTracingConfig(cfg, "")

	if tcfg.ServiceName != cfg.ServiceName || tcfg.ServiceVersion != cfg.ServiceVersion {
		t.Errorf("unexpected service identity %q/%q", tcfg.ServiceName, tcfg.ServiceVersion)
	}
	if len(tcfg.Exporters) != 1 {
		t.Fatalf("expected 1 exporter, got %d", len(tcfg.Exporters))
	}
	if tcfg.Exporters[0].Type != "file" {
		t.Errorf("expected file exporter, got %q", tcfg.Exporters[0].Type)
	}
	// With no path of its own, the file exporter writes to TraceFile.
	if tcfg.Exporters[0].Path != cfg.TraceFile {
		t.Errorf("expected path %q, got %q", cfg.TraceFile, tcfg.Exporters[0].Path)
	}
	if tcfg.Sampling.Enabled {
		t.Error("expected sampling disabled by default")
	}
}

func TestBuildTracingConfig_ConfiguredExporters(t *testing.T) {
	cfg := config.Default()
	cfg.Tracing.Exporters = []config.ExporterConfig{
		{Type: "sqlite", Path: "traces.db"},
		{Type: "otlp", Endpoint: "collector:4317", Insecure: true, Headers: map[string]string{"x-team": "ensemble"}},
		{Type: "console"},
	}
	cfg.Tracing.Sampling = config.SamplingConfig{Enabled: true, Rate: 0.5, AlwaysSampleErrors: true}

	tcfg := buildTracingConfig(cfg, "")

	if len(tcfg.Exporters) != 3 {
		t.Fatalf("expected 3 exporters, got %d", len(tcfg.Exporters))
	}
	sqlite := tcfg.Exporters[0]
	if sqlite.Type != "sqlite" || sqlite.Path != "traces.db" {
		t.Errorf("unexpected sqlite exporter %+v", sqlite)
	}
	otlp := tcfg.Exporters[1]
	if otlp.Type != "otlp" || otlp.Endpoint != "collector:4317" || !otlp.Insecure {
		t.Errorf("unexpected otlp exporter %+v", otlp)
	}
	if otlp.Headers["x-team"] != "ensemble" {
		t.Errorf("unexpected otlp headers %+v", otlp.Headers)
	}
	if tcfg.Exporters[2].Type != "console" {
		t.Errorf("unexpected third exporter %+v", tcfg.Exporters[2])
	}

	if !tcfg.Sampling.Enabled || tcfg.Sampling.Rate != 0.5 || !tcfg.Sampling.AlwaysSampleErrors {
		t.Errorf("unexpected sampling config %+v", tcfg.Sampling)
	}
}

func TestBuildTracingConfig_FilePathFallbacks(t *testing.T) {
	cfg := config.Default()
	cfg.TraceFile = "run.json"
	cfg.Tracing.Exporters = []config.ExporterConfig{
		{Type: "file"},
		{Type: "file", Path: "explicit.json"},
	}

	tcfg := buildTracingConfig(cfg, "")

	if tcfg.Exporters[0].Path != "run.json" {
		t.Errorf("expected pathless file exporter to use trace_file, got %q", tcfg.Exporters[0].Path)
	}
	if tcfg.Exporters[1].Path != "explicit.json" {
		t.Errorf("expected explicit path preserved, got %q", tcfg.Exporters[1].Path)
	}
}

func TestBuildTracingConfig_FlagOverridesFilePaths(t *testing.T) {
	cfg := config.Default()
	cfg.TraceFile = "flag.json" // runTeam assigns the flag value before building
	cfg.Tracing.Exporters = []config.ExporterConfig{
		{Type: "file", Path: "explicit.json"},
		{Type: "sqlite", Path: "traces.db"},
	}

	tcfg := buildTracingConfig(cfg, "flag.json")

	if tcfg.Exporters[0].Path != "flag.json" {
		t.Errorf("expected flag to override file exporter path, got %q", tcfg.Exporters[0].Path)
	}
	// Non-file exporters keep their own paths.
	if tcfg.Exporters[1].Path != "traces.db" {
		t.Errorf("expected sqlite path untouched, got %q", tcfg.Exporters[1].Path)
	}
}
