package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"casevise/internal/config"
	"casevise/internal/helper"
	"casevise/internal/models"
	"casevise/internal/rag"
)

// Server exposes the pipeline over HTTP: multipart upload, JSON ask/summarize,
// and playback of the per-session audio artifact.
type Server struct {
	cfg     *config.ServerConfig
	service *rag.Service
	md      goldmark.Markdown
}

func NewServer(cfg *config.ServerConfig, service *rag.Service) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		md:      goldmark.New(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/summarize", s.handleSummarize)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(s.cfg.AudioDir))))
	return mux
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.cfg.Addr).Msg("CaseVise server starting")
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type uploadResponse struct {
	Session string   `json:"session"`
	Files   []string `json:"files"`
}

// handleUpload accepts one or more case documents as multipart form files.
// An absent "session" field starts a new session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadMB << 20); err != nil {
		http.Error(w, "upload too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	// reject empty uploads before opening a session, so a bad request
	// leaves nothing behind
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}

	sess, err := s.sessionFor(r.FormValue("session"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var uploaded []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, err)
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.service.Upload(r.Context(), sess, fh.Filename, content); err != nil {
			s.writeError(w, err)
			return
		}
		uploaded = append(uploaded, filepath.Base(fh.Filename))
	}

	s.writeJSON(w, uploadResponse{Session: sess.ID, Files: uploaded})
}

type askRequest struct {
	Session  string `json:"session"`
	Question string `json:"question"`
}

type summarizeRequest struct {
	Session     string `json:"session"`
	Perspective string `json:"perspective"`
}

type answerResponse struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html"`
	AudioURL   string `json:"audio_url,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}
	sess, ok := s.service.Session(req.Session)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	resp, err := s.service.Ask(r.Context(), sess, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeAnswer(w, sess.ID, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.service.Session(req.Session)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	resp, err := s.service.Summarize(r.Context(), sess, models.Perspective(req.Perspective))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeAnswer(w, sess.ID, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) sessionFor(id string) (*rag.Session, error) {
	if id != "" {
		if sess, ok := s.service.Session(id); ok {
			return sess, nil
		}
	}
	if id == "" {
		var err error
		id, err = helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
	}
	return s.service.OpenSession(id)
}

func (s *Server) writeAnswer(w http.ResponseWriter, sessionID string, resp *models.Response) {
	out := answerResponse{Answer: resp.Text}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(resp.Text), &buf); err == nil {
		out.AnswerHTML = buf.String()
	}
	if resp.AudioPath != "" {
		out.AudioURL = "/audio/" + sessionID + ".mp3"
	}
	s.writeJSON(w, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the pipeline error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var parseErr *models.ParseError
	var perspErr *models.PerspectiveError
	switch {
	case errors.Is(err, models.ErrNoDocuments):
		http.Error(w, "please upload at least one case document first", http.StatusBadRequest)
	case errors.As(err, &perspErr):
		http.Error(w, perspErr.Error(), http.StatusBadRequest)
	case errors.As(err, &parseErr):
		http.Error(w, parseErr.Error(), http.StatusUnprocessableEntity)
	default:
		log.Error().Err(err).Msg("Request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
