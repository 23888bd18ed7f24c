package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agribot/internal/logging"
)

// defaultVoiceMap maps ISO-ish language codes to espeak-ng voices, covering
// the Indic languages the assistant serves.
var defaultVoiceMap = map[string]string{
	"en":    "en-us",
	"en-in": "en-in",
	"hi":    "hi",
	"bn":    "bn",
	"mr":    "mr",
	"ta":    "ta",
	"te":    "te",
	"kn":    "kn",
	"ml":    "ml",
	"gu":    "gu",
	"pa":    "pa",
	"ur":    "ur",
}

// espeakProvider shells out to espeak-ng and reads the rendered WAV back.
type espeakProvider struct {
	bin          string
	defaultVoice string
	speedWPM     int
	timeout      time.Duration
	voiceMap     map[string]string
	logger       logging.Logger
}

func newEspeakProvider(config Config) (*espeakProvider, error) {
	bin := config.EspeakBin
	if bin == "" {
		bin = "espeak-ng"
	}
	voice := config.Voice
	if voice == "" {
		voice = "en-us"
	}
	speed := config.SpeedWPM
	if speed <= 0 {
		speed = 170
	}
	timeout := config.SubprocessTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	voiceMap := make(map[string]string, len(defaultVoiceMap))
	for k, v := range defaultVoiceMap {
		voiceMap[k] = v
	}
	if config.VoiceMapPath != "" {
		overrides, err := loadVoiceMap(config.VoiceMapPath)
		if err != nil {
			return nil, err
		}
		for k, v := range overrides {
			voiceMap[strings.ToLower(k)] = v
		}
	}

	return &espeakProvider{
		bin:          bin,
		defaultVoice: voice,
		speedWPM:     speed,
		timeout:      timeout,
		voiceMap:     voiceMap,
		logger:       logging.NewComponentLogger("tts-espeak"),
	}, nil
}

func (p *espeakProvider) Name() string {
	return "espeak"
}

func (p *espeakProvider) Synthesize(ctx context.Context, req Request) (ProviderResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return ProviderResult{}, fmt.Errorf("empty text")
	}

	voice := p.voiceFor(req)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outFile, err := os.CreateTemp("", "tts_*.wav")
	if err != nil {
		return ProviderResult{}, fmt.Errorf("create temp file: %w", err)
	}
	outPath := outFile.Name()
	_ = outFile.Close()
	defer func() { _ = os.Remove(outPath) }()

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", voice, "-s", strconv.Itoa(p.speedWPM), "-w", outPath, req.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("synthesizing %d chars with voice %s", len(req.Text), voice)
	if err := cmd.Run(); err != nil {
		return ProviderResult{}, fmt.Errorf("espeak: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return ProviderResult{}, fmt.Errorf("read synthesized audio: %w", err)
	}

	return ProviderResult{
		Audio:       audio,
		ContentType: "audio/wav",
		Duration:    estimateDuration(req.Text),
		Metadata:    map[string]string{"voice": voice},
	}, nil
}

func (p *espeakProvider) voiceFor(req Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	if req.Language != "" {
		if voice, ok := p.voiceMap[strings.ToLower(req.Language)]; ok {
			return voice
		}
	}
	return p.defaultVoice
}

func loadVoiceMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("load voice map: %w", err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse voice map: %w", err)
	}
	return m, nil
}

