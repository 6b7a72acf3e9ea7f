package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"casevise/internal/config"
	"casevise/internal/models"
)

// Narrator converts a text response to speech through an OpenAI-compatible
// /v1/audio/speech endpoint. Narration is a non-essential enhancement: every
// failure degrades to "no audio" instead of failing the request.
type Narrator struct {
	cfg      *config.SpeechConfig
	audioDir string
	client   *http.Client
}

func NewNarrator(cfg *config.SpeechConfig, audioDir string) *Narrator {
	return &Narrator{
		cfg:      cfg,
		audioDir: audioDir,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize writes <audioDir>/<sessionID>.mp3, overwriting any previous
// audio for the session, and returns its path. On any failure it logs a
// warning and returns "".
func (n *Narrator) Synthesize(ctx context.Context, sessionID, text string) string {
	if n == nil || !n.cfg.Enabled {
		return ""
	}
	path, err := n.synthesize(ctx, sessionID, text)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("Speech synthesis failed, continuing without audio")
		return ""
	}
	return path
}

func (n *Narrator) synthesize(ctx context.Context, sessionID, text string) (string, error) {
	payload := struct {
		Model string `json:"model"`
		Input string `json:"input"`
		Voice string `json:"voice"`
	}{
		Model: n.cfg.Model,
		Input: text,
		Voice: n.cfg.Voice,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", &models.SynthesisError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/v1/audio/speech", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &models.SynthesisError{Err: err}
	}
	if n.cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(n.cfg.Key, "Bearer "))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &models.SynthesisError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &models.SynthesisError{Err: fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(body))}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &models.SynthesisError{Err: err}
	}

	if err := os.MkdirAll(n.audioDir, 0o755); err != nil {
		return "", &models.SynthesisError{Err: err}
	}
	path := filepath.Join(n.audioDir, sessionID+".mp3")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", &models.SynthesisError{Err: err}
	}
	return path, nil
}
