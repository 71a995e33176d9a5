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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/ensemble/internal/config"
	"github.com/tombee/ensemble/internal/log"
	"github.com/tombee/ensemble/internal/tracing"
	"github.com/tombee/ensemble/pkg/agent"
	"github.com/tombee/ensemble/pkg/llm"
	"github.com/tombee/ensemble/pkg/llm/providers"
	"github.com/tombee/ensemble/pkg/observability"
	"github.com/tombee/ensemble/pkg/team"
	"github.com/tombee/ensemble/pkg/tools"
	"github.com/tombee/ensemble/pkg/tools/builtin"
)

// shutdownTimeout bounds the final trace flush.
const shutdownTimeout = 10 * time.Second

// defaultTasks run when no tasks are given on the command line.
var defaultTasks = []string{
	"What is the current weather at Hyderabad now?",
	"Who is the current President of USA?",
	"Tell me the weather in London and search for the current Prime Minister of the UK.",
}

// Agent system prompts.
const (
	planningPrompt = `You are a planner. Delegate tasks to agents:
- WeatherAgent: For weather queries.
- WebSearchAgent: For general information lookups.
After receiving results from other agents, synthesize the information, summarize the overall outcome, and end your final message with 'TERMINATE'.
If a tool call fails or an agent reports an error, acknowledge it and try to proceed if possible, or report the failure and summarize before terminating.`

	weatherPrompt = `You are the WeatherAgent. Use the 'weather_tool' ONLY to get weather information for the requested city.
Once you get the result from the tool, return it directly and clearly state the information.
If the tool reports an error, return the exact error message received from the tool.
Do not try to answer weather questions directly or use other tools.`

	searchPrompt = `You are the WebSearchAgent. Use the 'web_search' tool ONLY for all information lookups requested.
Once you get the search results from the tool, summarize the key findings concisely and return the summary.
If the tool reports an error, return the exact error message received from the tool.
Do not speculate or use other tools.`
)

type runOptions struct {
	configFile  string
	traceFile   string
	maxMessages int
	metricsAddr string
	tasks       []string
}

// runTeam wires configuration, telemetry, providers, tools, and agents
// together and runs each task as one conversation.
func runTeam(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	if opts.traceFile != "" {
		cfg.TraceFile = opts.traceFile
	}
	if opts.maxMessages > 0 {
		cfg.MaxMessages = opts.maxMessages
	}

	logger := log.New(log.FromEnv())

	provider, err := tracing.New(ctx, buildTracingConfig(cfg, opts.traceFile))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	tracer := provider.Tracer("github.com/tombee/ensemble")

	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", provider.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(opts.metricsAddr, mux); err != nil {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", opts.metricsAddr)
	}

	primary, err := providers.NewOpenAIProvider(llm.APIKeyCredentials{
		APIKey:  cfg.Credentials.ModelAPIKey,
		BaseURL: cfg.Model.BaseURL,
	}, cfg.Model.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create primary model client: %w", err)
	}
	secondary, err := providers.NewOpenAIProvider(llm.APIKeyCredentials{
		APIKey:  cfg.Credentials.ModelAPIKey2,
		BaseURL: cfg.Model.BaseURL,
	}, cfg.Model.Timeout)
	if err != nil {
		return fmt.Errorf("failed to create secondary model client: %w", err)
	}

	participants, err := buildAgents(cfg, primary, secondary, tracer, provider, logger)
	if err != nil {
		return err
	}

	chat, err := team.New(team.Config{
		Participants:         participants,
		Selector:             primary,
		SelectorModel:        cfg.Model.Name,
		Termination:          team.Or(team.TextMentionTermination("TERMINATE"), team.MaxMessageTermination(cfg.MaxMessages)),
		AllowRepeatedSpeaker: true,
		Logger:               logger,
	}, tracer)
	if err != nil {
		return err
	}

	tasks := opts.tasks
	if len(tasks) == 0 {
		tasks = defaultTasks
	}

	var runErr error
	for _, task := range tasks {
		logger.Info("running task", log.TaskKey, task)
		start := time.Now()
		result, err := chat.Run(ctx, task)
		if err != nil {
			logger.Error("task failed", log.TaskKey, task, "error", err)
			runErr = err
			break
		}
		logger.Info("task finished", log.TaskKey, task, log.DurationKey, time.Since(start).Milliseconds())
		printConversation(result)
	}

	// Flush all pending spans before reporting the trace file as complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down telemetry", "error", err)
		if runErr == nil {
			runErr = err
		}
	} else {
		logger.Info("telemetry exported", "file", cfg.TraceFile)
	}

	return runErr
}

// buildTracingConfig maps the file configuration onto the telemetry
// provider's settings. With no exporters configured it keeps the default
// single file exporter. File exporters without a path write to TraceFile,
// and an explicit --trace-file flag overrides every file exporter's path.
func buildTracingConfig(cfg *config.Config, traceFileFlag string) tracing.Config {
	tcfg := tracing.DefaultConfig(cfg.ServiceName, cfg.ServiceVersion)
	tcfg.Environment = cfg.Environment
	tcfg.Sampling = tracing.SamplingConfig{
		Enabled:            cfg.Tracing.Sampling.Enabled,
		Rate:               cfg.Tracing.Sampling.Rate,
		AlwaysSampleErrors: cfg.Tracing.Sampling.AlwaysSampleErrors,
	}

	if len(cfg.Tracing.Exporters) > 0 {
		exporters := make([]tracing.ExporterConfig, 0, len(cfg.Tracing.Exporters))
		for _, e := range cfg.Tracing.Exporters {
			exporters = append(exporters, tracing.ExporterConfig{
				Type:     e.Type,
				Path:     e.Path,
				Endpoint: e.Endpoint,
				Headers:  e.Headers,
				Insecure: e.Insecure,
			})
		}
		tcfg.Exporters = exporters
	}

	for i := range tcfg.Exporters {
		if tcfg.Exporters[i].Type != "file" {
			continue
		}
		if tcfg.Exporters[i].Path == "" || traceFileFlag != "" {
			tcfg.Exporters[i].Path = cfg.TraceFile
		}
	}
	return tcfg
}

// buildAgents creates the three team members and wraps each with tracing
// and metrics. Wrap failures abort setup before any conversation runs.
func buildAgents(cfg *config.Config, primary, secondary llm.Provider, tracer observability.Tracer, provider *tracing.OTelProvider, logger *slog.Logger) ([]agent.MessageHandler, error) {
	weatherTool, err := builtin.NewWeatherTool(cfg.Credentials.WeatherAPIKey, tracer)
	if err != nil {
		return nil, err
	}
	weatherRegistry := tools.NewRegistry()
	if err := weatherRegistry.Register(weatherTool); err != nil {
		return nil, err
	}

	searchTool, err := builtin.NewSearchTool(cfg.Credentials.SerpAPIKey, tracer)
	if err != nil {
		return nil, err
	}
	searchRegistry := tools.NewRegistry()
	if err := searchRegistry.Register(searchTool); err != nil {
		return nil, err
	}

	planner, err := agent.New(agent.Config{
		Name:         "PlanningAgent",
		Description:  "Plans tasks and delegates.",
		SystemPrompt: planningPrompt,
		Model:        cfg.Model.Name,
	}, primary, nil, logger)
	if err != nil {
		return nil, err
	}

	weather, err := agent.New(agent.Config{
		Name:         "WeatherAgent",
		Description:  "Fetches current weather using weather_tool.",
		SystemPrompt: weatherPrompt,
		Model:        cfg.Model.Name,
	}, secondary, weatherRegistry, logger)
	if err != nil {
		return nil, err
	}

	webSearch, err := agent.New(agent.Config{
		Name:         "WebSearchAgent",
		Description:  "Searches the web using web_search.",
		SystemPrompt: searchPrompt,
		Model:        cfg.Model.Name,
	}, primary, searchRegistry, logger)
	if err != nil {
		return nil, err
	}

	var participants []agent.MessageHandler
	for _, a := range []*agent.AssistantAgent{planner, weather, webSearch} {
		a.SetMetrics(provider.Metrics())
		wrapped, err := tracing.WrapAgentWithMetrics(a, tracer, provider.Metrics())
		if err != nil {
			return nil, fmt.Errorf("failed to wrap agent %s: %w", a.Name(), err)
		}
		participants = append(participants, wrapped)
	}
	return participants, nil
}

// printConversation writes the finished conversation to stdout.
func printConversation(result *team.Result) {
	for _, msg := range result.Messages {
		sender := msg.Sender
		if sender == "" {
			sender = msg.Role
		}
		fmt.Printf("---------- %s ----------\n%s\n", sender, msg.Content)
	}
	fmt.Printf("Stop reason: %s\n", result.StopReason)
	if result.Usage.TotalTokens > 0 {
		fmt.Printf("Total tokens: %d (prompt %d, completion %d)\n",
			result.Usage.TotalTokens, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}
}
