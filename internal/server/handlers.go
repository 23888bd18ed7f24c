package server

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"agribot/internal/agent"
	"agribot/internal/agent/ports"
	"agribot/internal/tts"
)

const heardNothingReply = "Sorry, I couldn't hear anything. Please try again."

type chatRequest struct {
	SessionID    string   `json:"session_id"`
	Message      string   `json:"message"`
	Stream       bool     `json:"stream"`
	ImagesBase64 []string `json:"images_base64"`
	UserContext  string   `json:"user_context"`
}

type chatResponse struct {
	Text      string             `json:"text"`
	ToolCalls []ports.ToolResult `json:"tool_calls,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	images, err := decodeImages(req.ImagesBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turn := agent.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Images:    images,
	}

	if req.Stream {
		s.streamChat(c, turn)
		return
	}

	// The one-time context block only applies to the buffered path; the
	// streaming path carries no user_context field.
	turn.UserContext = req.UserContext

	result, err := s.deps.Engine.Respond(c.Request.Context(), turn)
	if err != nil {
		s.logger.Error("chat turn failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "agent failure"})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Text: result.Text, ToolCalls: result.ToolCalls})
}

func (s *Server) streamChat(c *gin.Context, turn agent.TurnRequest) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	_, err := s.deps.Engine.Stream(c.Request.Context(), turn, func(delta ports.ContentDelta) {
		if delta.Final {
			return
		}
		c.SSEvent("token", delta.Delta)
		c.Writer.Flush()
	})
	if err != nil {
		s.logger.Error("chat stream failed: %v", err)
		c.SSEvent("error", "agent failure")
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", "")
	c.Writer.Flush()
}

func (s *Server) handleVoice(c *gin.Context) {
	if s.deps.Transcriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech-to-text is not configured"})
		return
	}

	sessionID := c.DefaultPostForm("session_id", ports.DefaultSessionID)
	speak := parseBoolForm(c, "tts", true)
	language := c.PostForm("language")

	header, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}

	audioPath, err := saveUpload(c, header)
	if err != nil {
		s.logger.Error("save upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}
	defer os.Remove(audioPath)

	transcript, err := s.deps.Transcriber.Transcribe(c.Request.Context(), audioPath, language)
	if err != nil {
		s.metrics.RecordTranscription(false)
		s.logger.Error("transcription failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failure"})
		return
	}
	s.metrics.RecordTranscription(true)

	if strings.TrimSpace(transcript) == "" {
		if speak {
			s.respondWithSpeech(c, heardNothingReply, language)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_transcript", "transcript": transcript})
		return
	}

	result, err := s.deps.Engine.Respond(c.Request.Context(), agent.TurnRequest{
		SessionID: sessionID,
		Message:   transcript,
	})
	if err != nil {
		s.logger.Error("voice turn failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "agent failure"})
		return
	}

	if speak {
		s.respondWithSpeech(c, result.Text, language)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transcript": transcript,
		"reply":      result.Text,
		"tool_calls": result.ToolCalls,
	})
}

func (s *Server) respondWithSpeech(c *gin.Context, text, language string) {
	if s.deps.Speech == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "text-to-speech is not configured"})
		return
	}
	out, err := s.deps.Speech.Synthesize(c.Request.Context(), tts.Request{Text: text, Language: language})
	if err != nil {
		s.logger.Error("synthesis failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "synthesis failure"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", audioFilename("reply", out.ContentType)))
	c.Data(http.StatusOK, out.ContentType, out.Audio)
}

func (s *Server) handleImageClassify(c *gin.Context) {
	if s.deps.Classifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image classification is not configured"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}

	result, err := s.deps.Classifier.Classify(c.Request.Context(), image, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTTS(c *gin.Context) {
	text := c.PostForm("text")
	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	if s.deps.Speech == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "text-to-speech is not configured"})
		return
	}
	out, err := s.deps.Speech.Synthesize(c.Request.Context(), tts.Request{Text: text, Language: c.PostForm("language")})
	if err != nil {
		s.logger.Error("synthesis failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "synthesis failure"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", audioFilename("speech", out.ContentType)))
	c.Data(http.StatusOK, out.ContentType, out.Audio)
}

type kbIngestRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *Server) handleKBIngest(c *gin.Context) {
	if s.deps.Ingester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge base ingestion is not configured"})
		return
	}

	var req kbIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.Name == "" || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and text are required"})
		return
	}

	chunks, err := s.deps.Ingester.IngestText(c.Request.Context(), req.Name, req.Text)
	if err != nil {
		s.logger.Error("kb ingest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingest failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "chunks": chunks})
}

func decodeImages(encoded []string) ([][]byte, error) {
	if encoded == nil {
		return nil, nil
	}
	images := make([][]byte, 0, len(encoded))
	for i, b64 := range encoded {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("images_base64[%d] is not valid base64", i)
		}
		images = append(images, raw)
	}
	return images, nil
}

func parseBoolForm(c *gin.Context, field string, fallback bool) bool {
	switch strings.ToLower(c.PostForm(field)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return fallback
	}
}

func saveUpload(c *gin.Context, header *multipart.FileHeader) (string, error) {
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".wav"
	}
	tmp, err := os.CreateTemp("", "agribot-audio-*"+ext)
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()
	if err := c.SaveUploadedFile(header, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func audioFilename(base, contentType string) string {
	if strings.Contains(contentType, "mpeg") {
		return base + ".mp3"
	}
	return base + ".wav"
}
