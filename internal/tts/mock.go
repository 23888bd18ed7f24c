package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"time"
)

// MockProvider renders silence instead of speech. It keeps the voice pipeline
// testable on machines without an espeak-ng binary or ElevenLabs credentials:
// the output is a valid 16-bit mono WAV whose length tracks the reply text.
type MockProvider struct {
	SampleRate int // default 16000, matching the transcription pipeline
}

func (m MockProvider) Name() string {
	return "mock"
}

// Synthesize returns silent audio sized to the estimated speaking time. The
// reported voice follows the same language mapping the espeak provider uses,
// so callers passing Indic language hints see realistic metadata.
func (m MockProvider) Synthesize(_ context.Context, req Request) (ProviderResult, error) {
	rate := m.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	duration := estimateDuration(req.Text)
	return ProviderResult{
		Audio:       silentWAV(duration, rate),
		ContentType: "audio/wav",
		Duration:    duration,
		Metadata: map[string]string{
			"voice":    m.voiceFor(req),
			"language": req.Language,
		},
	}, nil
}

func (m MockProvider) voiceFor(req Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	if voice, ok := defaultVoiceMap[strings.ToLower(req.Language)]; ok {
		return voice
	}
	return "en-us"
}

// wavHeader is the canonical 44-byte PCM RIFF header.
type wavHeader struct {
	RiffID        [4]byte
	RiffSize      uint32
	WaveID        [4]byte
	FmtID         [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataID        [4]byte
	DataSize      uint32
}

// silentWAV builds a mono PCM file of zero samples, at least one second long.
func silentWAV(duration time.Duration, sampleRate int) []byte {
	samples := int(duration.Seconds() * float64(sampleRate))
	if samples < sampleRate {
		samples = sampleRate
	}
	dataSize := samples * 2

	header := wavHeader{
		RiffID:        [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:      uint32(36 + dataSize),
		WaveID:        [4]byte{'W', 'A', 'V', 'E'},
		FmtID:         [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		DataID:        [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataSize),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	_ = binary.Write(buf, binary.LittleEndian, header)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}
