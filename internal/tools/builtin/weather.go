package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agribot/internal/agent/ports"
	"agribot/internal/logging"
)

// WeatherConfig points the tool at an Open-Meteo compatible API pair.
type WeatherConfig struct {
	GeocodeURL  string
	ForecastURL string
	Timeout     time.Duration
}

// weatherTool reports current conditions for a named city. Open-Meteo needs
// no API key.
type weatherTool struct {
	config     WeatherConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewWeather creates the get_weather tool.
func NewWeather(config WeatherConfig) ports.ToolExecutor {
	if config.GeocodeURL == "" {
		config.GeocodeURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if config.ForecastURL == "" {
		config.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &weatherTool{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logging.NewComponentLogger("tool-weather"),
	}
}

func (t *weatherTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "get_weather",
		Description: "Get current weather for a city using Open-Meteo (no API key).",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"city": {
					Type:        "string",
					Description: "City name, e.g. 'Pune' or 'Nagpur'",
				},
				"unit": {
					Type:        "string",
					Description: "Temperature unit",
					Enum:        []any{"c", "f"},
				},
			},
			Required: []string{"city"},
		},
	}
}

func (t *weatherTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	city, ok := call.Arguments["city"].(string)
	if !ok || strings.TrimSpace(city) == "" {
		return &ports.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  fmt.Errorf("missing or invalid 'city' parameter"),
		}, nil
	}

	unit := "c"
	if u, ok := call.Arguments["unit"].(string); ok && u != "" {
		unit = strings.ToLower(u)
	}

	location, err := t.geocode(ctx, city)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	current, err := t.currentConditions(ctx, location.Latitude, location.Longitude, unit)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	unitLabel := "C"
	if unit == "f" {
		unitLabel = "F"
	}

	payload := map[string]any{
		"city":              location.Name,
		"country":           location.Country,
		"latitude":          location.Latitude,
		"longitude":         location.Longitude,
		"temperature":       current.Temperature,
		"relative_humidity": current.RelativeHumidity,
		"weather_code":      current.WeatherCode,
		"unit":              unitLabel,
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Name: call.Name, Error: err}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(content),
	}, nil
}

type geoLocation struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (t *weatherTool) geocode(ctx context.Context, city string) (*geoLocation, error) {
	params := url.Values{}
	params.Set("name", city)
	params.Set("count", "1")
	params.Set("language", "en")

	var response struct {
		Results []geoLocation `json:"results"`
	}
	if err := t.getJSON(ctx, t.config.GeocodeURL+"?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("No match for '%s'", city)
	}
	return &response.Results[0], nil
}

type currentConditions struct {
	Temperature      float64 `json:"temperature_2m"`
	RelativeHumidity float64 `json:"relative_humidity_2m"`
	WeatherCode      int     `json:"weather_code"`
}

func (t *weatherTool) currentConditions(ctx context.Context, lat, lon float64, unit string) (*currentConditions, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%g", lat))
	params.Set("longitude", fmt.Sprintf("%g", lon))
	params.Set("current", "temperature_2m,relative_humidity_2m,weather_code")
	if unit == "f" {
		params.Set("temperature_unit", "fahrenheit")
	}

	var response struct {
		Current currentConditions `json:"current"`
	}
	if err := t.getJSON(ctx, t.config.ForecastURL+"?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return &response.Current, nil
}

func (t *weatherTool) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("weather API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
