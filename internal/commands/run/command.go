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

// Package run implements the run command: it assembles the agent team and
// executes one or more tasks with full tracing.
package run

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var (
		configFile  string
		traceFile   string
		maxMessages int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run the agent team against one or more tasks",
		Long: `Run assembles the agent team (PlanningAgent, WeatherAgent, WebSearchAgent),
executes each task as a traced conversation, and writes the collected spans
to the trace file when all tasks have finished.

Tasks are given as positional arguments; without any, a built-in set of
demonstration tasks is used.

Credentials are read from the environment:
  GEMINI_API_KEY     primary model key (GEMINI_API_KEY_2 optional secondary)
  WEATHER_API_KEY    weather service key
  SERP_API_KEY       search service key

Missing model keys degrade to a placeholder so startup never fails; missing
tool keys surface as readable error strings inside the conversation.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeam(cmd.Context(), runOptions{
				configFile:  configFile,
				traceFile:   traceFile,
				maxMessages: maxMessages,
				metricsAddr: metricsAddr,
				tasks:       args,
			})
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "Override the trace output file path")
	cmd.Flags().IntVar(&maxMessages, "max-messages", 0, "Override the conversation message cap")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
