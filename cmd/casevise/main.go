package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"casevise/internal/compose"
	"casevise/internal/config"
	"casevise/internal/embedding"
	"casevise/internal/index"
	"casevise/internal/llmservice"
	"casevise/internal/models"
	"casevise/internal/narrate"
	"casevise/internal/rag"
	"casevise/internal/server"
	"casevise/internal/watch"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Case document to ingest (one-shot mode)")
	query := flag.String("query", "", "Question to answer (one-shot mode, requires -file)")
	perspective := flag.String("perspective", "", "Summary perspective: student, lawyer or judge (one-shot mode, requires -file)")
	watchDir := flag.String("watch", "", "Directory to watch for case documents (server mode)")
	flag.Parse()

	// .env is optional, real env vars win either way
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	service, err := buildService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error wiring pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *filePath != "" {
		runOneShot(ctx, service, *filePath, *query, *perspective)
		return
	}
	if *query != "" || *perspective != "" {
		log.Fatal().Msg("-query and -perspective require -file")
	}

	if *watchDir != "" {
		sess, err := service.OpenSession("watch")
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening watch session")
		}
		watcher, err := watch.NewWatcher(service, sess)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating watcher")
		}
		go func() {
			if err := watcher.Run(ctx, *watchDir); err != nil {
				log.Error().Err(err).Msg("Watcher stopped")
			}
		}()
	}

	srv := server.NewServer(&cfg.Server, service)
	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func buildService(cfg *config.Config) (*rag.Service, error) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	llm, err := llmservice.NewClient(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("initializing llm client: %w", err)
	}
	composer := compose.NewComposer(llm)
	narrator := narrate.NewNarrator(&cfg.Speech, cfg.Server.AudioDir)

	var pg *bun.DB
	if cfg.Index.Backend == "postgres" {
		pg, err = index.ConnectDB(&cfg.Index.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := index.InitSchema(context.Background(), pg); err != nil {
			return nil, fmt.Errorf("initializing schema: %w", err)
		}
	}

	newIndex := func(sessionID string) (index.VectorIndex, error) {
		if cfg.Index.Backend == "postgres" {
			return index.NewPostgresIndex(pg, sessionID), nil
		}
		return index.NewChromemIndex(filepath.Join(cfg.Index.Path, sessionID), "chunks")
	}

	return rag.NewService(cfg, embedder, composer, narrator, newIndex), nil
}

// runOneShot ingests one file and answers a single question or summary
// request from the command line, without starting the server.
func runOneShot(ctx context.Context, service *rag.Service, filePath, query, perspective string) {
	sess, err := service.OpenSession("cli")
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening session")
	}
	defer service.CloseSession(sess.ID)

	content, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading file")
	}
	if err := service.Upload(ctx, sess, filePath, content); err != nil {
		log.Fatal().Err(err).Msg("Error ingesting file")
	}

	var resp *models.Response
	switch {
	case query != "":
		resp, err = service.Ask(ctx, sess, query)
	case perspective != "":
		resp, err = service.Summarize(ctx, sess, models.Perspective(perspective))
	default:
		log.Info().Msg("File ingested, nothing to answer (pass -query or -perspective)")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	fmt.Printf("%s\n", resp.Text)
	if resp.AudioPath != "" {
		log.Info().Str("audio", resp.AudioPath).Msg("Spoken version written")
	}
}
