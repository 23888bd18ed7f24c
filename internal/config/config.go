package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all runtime settings for the gateway. Values come from an
// optional YAML config file and environment variables; env wins.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	RAG     RAGConfig     `mapstructure:"rag"`
	Weather WeatherConfig `mapstructure:"weather"`
	STT     STTConfig     `mapstructure:"stt"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Vision  VisionConfig  `mapstructure:"vision"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai|ollama
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutSecs int     `mapstructure:"timeout_seconds"`
}

// AgentConfig bounds the agent loop.
type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// RAGConfig configures the knowledge base.
type RAGConfig struct {
	PersistPath    string `mapstructure:"persist_path"`
	Collection     string `mapstructure:"collection"`
	EmbedModel     string `mapstructure:"embed_model"`
	EmbedAPIKey    string `mapstructure:"embed_api_key"`
	EmbedBaseURL   string `mapstructure:"embed_base_url"`
	EmbedCacheSize int    `mapstructure:"embed_cache_size"`
	TopK           int    `mapstructure:"top_k"`
}

// WeatherConfig configures the weather tool endpoints.
type WeatherConfig struct {
	GeocodeURL  string `mapstructure:"geocode_url"`
	ForecastURL string `mapstructure:"forecast_url"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

// STTConfig configures speech-to-text providers.
type STTConfig struct {
	Provider            string `mapstructure:"provider"` // local|openai
	WhisperBin          string `mapstructure:"whisper_bin"`
	WhisperModelPath    string `mapstructure:"whisper_model_path"`
	FFmpegBin           string `mapstructure:"ffmpeg_bin"`
	OpenAIAPIKey        string `mapstructure:"openai_api_key"`
	OpenAIBaseURL       string `mapstructure:"openai_base_url"`
	OpenAIModel         string `mapstructure:"openai_model"`
	FallbackLocalOnErr  bool   `mapstructure:"fallback_local_on_error"`
	RequestTimeoutSecs  int    `mapstructure:"request_timeout_seconds"`
	SubprocTimeoutSecs  int    `mapstructure:"subprocess_timeout_seconds"`
}

// TTSConfig configures text-to-speech providers.
type TTSConfig struct {
	Provider           string `mapstructure:"provider"` // espeak|elevenlabs|mock
	EspeakBin          string `mapstructure:"espeak_bin"`
	Voice              string `mapstructure:"voice"`
	SpeedWPM           int    `mapstructure:"speed_wpm"`
	VoiceMapPath       string `mapstructure:"voice_map_path"`
	ElevenLabsAPIKey   string `mapstructure:"elevenlabs_api_key"`
	ElevenLabsVoiceID  string `mapstructure:"elevenlabs_voice_id"`
	ElevenLabsModelID  string `mapstructure:"elevenlabs_model_id"`
	RequestTimeoutSecs int    `mapstructure:"request_timeout_seconds"`
	SubprocTimeoutSecs int    `mapstructure:"subprocess_timeout_seconds"`
}

// VisionConfig configures the crop-disease classifier backend.
type VisionConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	TopK        int    `mapstructure:"top_k"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

// envBindings maps viper keys to the environment variables the deployment
// already uses. Kept explicit so renames never break running installs.
var envBindings = map[string]string{
	"server.host":                  "AGRIBOT_HOST",
	"server.port":                  "AGRIBOT_PORT",
	"log.level":                    "AGRIBOT_LOG_LEVEL",
	"log.format":                   "AGRIBOT_LOG_FORMAT",
	"llm.provider":                 "USE_LLM",
	"llm.model":                    "LLM_MODEL",
	"llm.api_key":                  "LLM_API_KEY",
	"llm.base_url":                 "LLM_BASE_URL",
	"rag.persist_path":             "RAG_PERSIST_PATH",
	"rag.collection":               "RAG_COLLECTION",
	"rag.embed_model":              "EMBEDDING_MODEL",
	"rag.embed_api_key":            "EMBEDDING_API_KEY",
	"rag.embed_base_url":           "EMBEDDING_BASE_URL",
	"stt.provider":                 "STT_PROVIDER",
	"stt.whisper_bin":              "WHISPER_CPP_BIN",
	"stt.whisper_model_path":       "WHISPER_MODEL_PATH",
	"stt.ffmpeg_bin":               "FFMPEG_BIN",
	"stt.openai_api_key":           "OPENAI_API_KEY",
	"stt.openai_base_url":          "OPENAI_BASE_URL",
	"stt.openai_model":             "OPENAI_WHISPER_MODEL",
	"stt.fallback_local_on_error":  "STT_FALLBACK_LOCAL_ON_ERROR",
	"tts.provider":                 "TTS_PROVIDER",
	"tts.espeak_bin":               "ESPEAK_BIN",
	"tts.voice":                    "TTS_VOICE",
	"tts.speed_wpm":                "TTS_SPEED_WPM",
	"tts.elevenlabs_api_key":       "ELEVENLABS_API_KEY",
	"tts.elevenlabs_voice_id":      "ELEVENLABS_VOICE_ID",
	"tts.elevenlabs_model_id":      "ELEVENLABS_MODEL_ID",
	"vision.base_url":              "VIT_BASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.max_upload_mb", int64(25))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout_seconds", 120)

	v.SetDefault("agent.max_iterations", 4)

	v.SetDefault("rag.persist_path", "./data/kb")
	v.SetDefault("rag.collection", "agribot-kb")
	v.SetDefault("rag.embed_model", "text-embedding-3-small")
	v.SetDefault("rag.embed_base_url", "")
	v.SetDefault("rag.embed_cache_size", 10000)
	v.SetDefault("rag.top_k", 4)

	v.SetDefault("weather.geocode_url", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("weather.forecast_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.timeout_seconds", 10)

	v.SetDefault("stt.provider", "local")
	v.SetDefault("stt.whisper_bin", "/opt/whisper.cpp/build/bin/whisper-cli")
	v.SetDefault("stt.whisper_model_path", "/opt/whisper.cpp/models/ggml-base.en.bin")
	v.SetDefault("stt.ffmpeg_bin", "ffmpeg")
	v.SetDefault("stt.openai_base_url", "https://api.openai.com")
	v.SetDefault("stt.openai_model", "whisper-1")
	v.SetDefault("stt.fallback_local_on_error", true)
	v.SetDefault("stt.request_timeout_seconds", 60)
	v.SetDefault("stt.subprocess_timeout_seconds", 120)

	v.SetDefault("tts.provider", "espeak")
	v.SetDefault("tts.espeak_bin", "espeak-ng")
	v.SetDefault("tts.voice", "en-us")
	v.SetDefault("tts.speed_wpm", 170)
	v.SetDefault("tts.elevenlabs_model_id", "eleven_multilingual_v2")
	v.SetDefault("tts.request_timeout_seconds", 60)
	v.SetDefault("tts.subprocess_timeout_seconds", 60)

	v.SetDefault("vision.base_url", "http://localhost:9090")
	v.SetDefault("vision.top_k", 3)
	v.SetDefault("vision.timeout_seconds", 30)
}

// Load reads configuration from the optional file at path (empty means skip)
// plus environment variables, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q (want openai or ollama)", c.LLM.Provider)
	}

	switch strings.ToLower(c.STT.Provider) {
	case "local", "openai":
	default:
		return fmt.Errorf("unknown stt provider %q (want local or openai)", c.STT.Provider)
	}

	switch strings.ToLower(c.TTS.Provider) {
	case "espeak", "elevenlabs", "mock":
	default:
		return fmt.Errorf("unknown tts provider %q (want espeak, elevenlabs or mock)", c.TTS.Provider)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}

	return nil
}
