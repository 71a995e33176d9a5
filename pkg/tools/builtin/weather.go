// Package builtin provides the tools shipped with ensemble: current-weather
// lookup and web search. Both return their outcome as a string, errors
// included, so a model can read and recover from failures.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tombee/ensemble/pkg/httpclient"
	"github.com/tombee/ensemble/pkg/observability"
	"github.com/tombee/ensemble/pkg/tools"
)

// defaultWeatherURL is the weatherapi.com current-conditions endpoint.
const defaultWeatherURL = "http://api.weatherapi.com/v1/current.json"

// WeatherTool looks up current conditions for a city.
type WeatherTool struct {
	apiKey  string
	baseURL string
	client  *http.Client
	tracer  observability.Tracer
}

// WeatherOption customizes a WeatherTool.
type WeatherOption func(*WeatherTool)

// WithWeatherBaseURL overrides the API endpoint, mainly for tests.
func WithWeatherBaseURL(baseURL string) WeatherOption {
	return func(w *WeatherTool) {
		w.baseURL = baseURL
	}
}

// WithWeatherHTTPClient overrides the HTTP client.
func WithWeatherHTTPClient(client *http.Client) WeatherOption {
	return func(w *WeatherTool) {
		w.client = client
	}
}

// NewWeatherTool creates the weather tool. The key may be empty; lookups
// then return an error string without making a network call.
func NewWeatherTool(apiKey string, tracer observability.Tracer, opts ...WeatherOption) (*WeatherTool, error) {
	if tracer == nil {
		return nil, fmt.Errorf("weather tool requires a tracer")
	}
	w := &WeatherTool{
		apiKey:  apiKey,
		baseURL: defaultWeatherURL,
		tracer:  tracer,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.client == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = 10 * time.Second
		client, err := httpclient.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		w.client = client
	}
	return w, nil
}

// Name returns the tool identifier exposed to the model.
func (w *WeatherTool) Name() string {
	return "weather_tool"
}

// Description returns the model-facing description.
func (w *WeatherTool) Description() string {
	return "Gets the current weather conditions and temperature for a city."
}

// Parameters returns the tool's argument schema.
func (w *WeatherTool) Parameters() *tools.ParameterSchema {
	return &tools.ParameterSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"city": {Type: "string", Description: "Name of the city to look up."},
		},
		Required: []string{"city"},
	}
}

// Execute adapts Lookup to the registry contract. Failures are carried
// inside the output string, never as an error.
func (w *WeatherTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	city, _ := args["city"].(string)
	return map[string]any{"output": w.Lookup(ctx, city)}, nil
}

// weatherResponse is the subset of the weatherapi.com payload we read.
type weatherResponse struct {
	Current struct {
		TempC     float64 `json:"temp_c"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Lookup fetches current conditions for city and renders them as a
// sentence. All failures come back as descriptive strings; Lookup never
// lets an error escape its boundary.
func (w *WeatherTool) Lookup(ctx context.Context, city string) string {
	_, span := w.tracer.Start(ctx, "tool.weather_tool",
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(map[string]any{
			"weather.city": city,
		}),
	)
	defer span.End()

	if w.apiKey == "" {
		msg := "Error: WEATHER_API_KEY not set"
		span.SetAttributes(map[string]any{"error.message": msg})
		span.SetStatus(observability.StatusCodeError, msg)
		return msg
	}

	query := url.Values{}
	query.Set("key", w.apiKey)
	query.Set("q", city)
	query.Set("aqi", "no")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return w.failure(span, "Weather tool error", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return w.failure(span, "Weather tool request error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.failure(span, "Weather tool request error",
			fmt.Errorf("unexpected status %d from weather API", resp.StatusCode))
	}

	var payload weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return w.failure(span, "Weather tool error", err)
	}

	condition := payload.Current.Condition.Text
	temp := payload.Current.TempC
	result := fmt.Sprintf("The current weather in %s is %s with a temperature of %g°C.", city, condition, temp)

	span.SetAttributes(map[string]any{
		"weather.temperature_c": temp,
		"weather.condition":     condition,
		"tool.output":           result,
	})
	span.SetStatus(observability.StatusCodeOK, "")
	return result
}

// failure records err on the span and renders it as a prefixed string.
func (w *WeatherTool) failure(span observability.SpanHandle, prefix string, err error) string {
	msg := fmt.Sprintf("%s: %v", prefix, err)
	span.SetAttributes(map[string]any{
		"exception.type": fmt.Sprintf("%T", err),
		"error.message":  msg,
	})
	span.RecordError(err)
	return msg
}

// Compile-time check that WeatherTool implements tools.Tool
var _ tools.Tool = (*WeatherTool)(nil)
