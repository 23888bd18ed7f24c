package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"agribot/internal/agent"
	"agribot/internal/attachments"
	"agribot/internal/config"
	"agribot/internal/llm"
	"agribot/internal/logging"
	"agribot/internal/metrics"
	"agribot/internal/rag"
	"agribot/internal/server"
	"agribot/internal/session"
	"agribot/internal/stt"
	"agribot/internal/tools"
	"agribot/internal/tools/builtin"
	"agribot/internal/tts"
	"agribot/internal/vision"
)

var (
	configPath string
	kbDir      string
)

func main() {
	root := &cobra.Command{
		Use:   "agribot-server",
		Short: "Agriculture conversational agent gateway",
		Long:  "AgriBot routes text, voice and image input to a tool-augmented LLM agent over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (optional)")
	root.Flags().StringVar(&kbDir, "kb-dir", "", "directory of documents to ingest into the knowledge base on startup")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.NewComponentLogger("main")
	logger.Info("starting agribot-server: llm=%s model=%s stt=%s tts=%s",
		cfg.LLM.Provider, cfg.LLM.Model, cfg.STT.Provider, cfg.TTS.Provider)

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	client, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model, llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.TimeoutSecs,
	})
	if err != nil {
		return fmt.Errorf("init llm client: %w", err)
	}

	history := session.NewMemoryStore()
	images := attachments.NewStore()

	embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
		Model:     cfg.RAG.EmbedModel,
		APIKey:    cfg.RAG.EmbedAPIKey,
		BaseURL:   cfg.RAG.EmbedBaseURL,
		CacheSize: cfg.RAG.EmbedCacheSize,
	})
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}
	store, err := rag.NewVectorStore(rag.StoreConfig{
		PersistPath: cfg.RAG.PersistPath,
		Collection:  cfg.RAG.Collection,
	}, embedder)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	retriever := rag.NewRetriever(rag.RetrieverConfig{TopK: cfg.RAG.TopK}, store)
	chunker, err := rag.NewChunker(rag.ChunkerConfig{})
	if err != nil {
		return fmt.Errorf("init chunker: %w", err)
	}
	ingester := rag.NewIngester(rag.IngesterConfig{}, chunker, embedder, store)

	if kbDir != "" {
		stats, err := ingester.IngestDir(ctx, kbDir)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", kbDir, err)
		}
		logger.Info("knowledge base ingest: files=%d chunks=%d failures=%d",
			stats.TotalFiles, stats.TotalChunks, stats.ErrorFiles)
	}

	classifier, err := vision.NewClassifier(vision.Config{
		BaseURL: cfg.Vision.BaseURL,
		TopK:    cfg.Vision.TopK,
		Timeout: time.Duration(cfg.Vision.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}

	transcriber, err := stt.New(stt.Config{
		Provider:             cfg.STT.Provider,
		WhisperBin:           cfg.STT.WhisperBin,
		WhisperModelPath:     cfg.STT.WhisperModelPath,
		FFmpegBin:            cfg.STT.FFmpegBin,
		APIKey:               cfg.STT.OpenAIAPIKey,
		BaseURL:              cfg.STT.OpenAIBaseURL,
		WhisperModel:         cfg.STT.OpenAIModel,
		FallbackLocalOnError: cfg.STT.FallbackLocalOnErr,
		RequestTimeout:       time.Duration(cfg.STT.RequestTimeoutSecs) * time.Second,
		SubprocessTimeout:    time.Duration(cfg.STT.SubprocTimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init transcriber: %w", err)
	}

	speech, err := tts.New(tts.Config{
		Provider:          cfg.TTS.Provider,
		EspeakBin:         cfg.TTS.EspeakBin,
		Voice:             cfg.TTS.Voice,
		SpeedWPM:          cfg.TTS.SpeedWPM,
		VoiceMapPath:      cfg.TTS.VoiceMapPath,
		ElevenLabsAPIKey:  cfg.TTS.ElevenLabsAPIKey,
		ElevenLabsVoiceID: cfg.TTS.ElevenLabsVoiceID,
		ElevenLabsModelID: cfg.TTS.ElevenLabsModelID,
		RequestTimeout:    time.Duration(cfg.TTS.RequestTimeoutSecs) * time.Second,
		SubprocessTimeout: time.Duration(cfg.TTS.SubprocTimeoutSecs) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init tts: %w", err)
	}

	toolRegistry := tools.NewRegistry()
	builtins := []error{
		toolRegistry.Register(builtin.NewWeather(builtin.WeatherConfig{
			GeocodeURL:  cfg.Weather.GeocodeURL,
			ForecastURL: cfg.Weather.ForecastURL,
			Timeout:     time.Duration(cfg.Weather.TimeoutSecs) * time.Second,
		})),
		toolRegistry.Register(builtin.NewRAGSearch(retriever)),
		toolRegistry.Register(builtin.NewClassifyCropDisease(images, classifier)),
	}
	for _, err := range builtins {
		if err != nil {
			return fmt.Errorf("register tool: %w", err)
		}
	}

	engine := agent.New(
		agent.Config{
			MaxIterations: cfg.Agent.MaxIterations,
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
		},
		llm.EnsureStreaming(client),
		toolRegistry,
		history,
		images,
		agent.WithLogger(logging.NewComponentLogger("agent")),
		agent.WithMetrics(m),
	)

	srv, err := server.New(cfg.Server, server.Deps{
		Engine:      engine,
		Transcriber: transcriber,
		Speech:      speech,
		Classifier:  classifier,
		Ingester:    ingester,
		Logger:      logging.NewComponentLogger("http"),
		Metrics:     m,
		Gatherer:    registry,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
