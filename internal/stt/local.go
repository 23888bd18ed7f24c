package stt

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"agribot/internal/logging"
)

// localTranscriber shells out to whisper.cpp, converting input to 16 kHz
// mono WAV via ffmpeg first when needed.
type localTranscriber struct {
	whisperBin string
	modelPath  string
	ffmpegBin  string
	timeout    time.Duration
	logger     logging.Logger
}

func newLocalTranscriber(config Config) *localTranscriber {
	whisperBin := config.WhisperBin
	if whisperBin == "" {
		whisperBin = "whisper-cli"
	}
	ffmpegBin := config.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	timeout := config.SubprocessTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &localTranscriber{
		whisperBin: whisperBin,
		modelPath:  config.WhisperModelPath,
		ffmpegBin:  ffmpegBin,
		timeout:    timeout,
		logger:     logging.NewComponentLogger("stt-local"),
	}
}

func (l *localTranscriber) Transcribe(ctx context.Context, path string, language string) (string, error) {
	// The timeout covers the ffmpeg conversion and the whisper run together.
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	wavPath, err := ensureWAV(ctx, l.ffmpegBin, path)
	if err != nil {
		return "", err
	}

	args := []string{"-m", l.modelPath, "-f", wavPath}
	if language != "" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, l.whisperBin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("running %s %s", l.whisperBin, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper.cpp: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseTranscript(stdout.String()), nil
}

// ensureWAV converts the input to 16 kHz mono PCM WAV unless it already is
// a WAV file.
func ensureWAV(ctx context.Context, ffmpegBin, path string) (string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".wav") {
		return path, nil
	}

	wavPath := path + ".wav"
	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-y", "-i", path, "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", wavPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg convert: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return wavPath, nil
}

// parseTranscript extracts spoken text from whisper.cpp stdout. Lines with
// timestamp brackets contribute the text after the bracket; diagnostic lines
// mentioning timings are skipped.
func parseTranscript(stdout string) string {
	var texts []string
	for _, line := range strings.Split(stdout, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "[") && strings.Contains(s, "]") {
			if _, after, ok := strings.Cut(s, "]"); ok {
				texts = append(texts, strings.TrimSpace(after))
				continue
			}
		}
		if strings.Contains(s, "whisper") || strings.Contains(s, "ms") || strings.Contains(s, "->") {
			continue
		}
		texts = append(texts, s)
	}
	if len(texts) > 0 {
		return strings.TrimSpace(strings.Join(texts, " "))
	}

	var nonEmpty []string
	for _, line := range strings.Split(stdout, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return nonEmpty[len(nonEmpty)-1]
}
