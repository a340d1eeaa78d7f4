package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/talkscope/talkscope/app/talkscope-api/handlers"
	"github.com/talkscope/talkscope/business/analysis"
	"github.com/talkscope/talkscope/business/pipeline"
	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/external/emotion"
	"github.com/talkscope/talkscope/foundation/external/google"
	"github.com/talkscope/talkscope/foundation/external/llm"
	"github.com/talkscope/talkscope/foundation/logger"
	"github.com/talkscope/talkscope/foundation/pubsub"
	"github.com/talkscope/talkscope/foundation/upload"
)

var (
	version   string
	buildTime string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "startup: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	// =================================================================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			Host            string        `conf:"default:0.0.0.0:8000"`
			ReadTimeout     time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
		Upload struct {
			ScratchDirectory string `conf:"default:/tmp/talkscope"`
			MaxBytes         int64  `conf:"default:15728640"`
		}
		Session struct {
			Backend       string        `conf:"default:memory,help:memory | redis | postgres"`
			IdleTTL       time.Duration `conf:"default:2h"`
			MaxHistory    int           `conf:"default:100"`
			RedisHost     string
			RedisPassword string `conf:"noprint"`
			PostgresDSN   string `conf:"noprint"`
		}
		OpenAI struct {
			APIKey          string `conf:"noprint"`
			Model           string `conf:"default:gpt-5-mini"`
			BaseURL         string
			MaxOutputTokens int64 `conf:"default:2500"`
		}
		Google struct {
			CredentialsPath   string `conf:"noprint"`
			LanguageCode      string `conf:"default:en-US"`
			MinSpeakers       int    `conf:"default:2"`
			MaxSpeakers       int    `conf:"default:6"`
			TranslationTarget string
			TranslationSource string
		}
		Emotion struct {
			VoiceEndpoint string
			TextEndpoint  string
			ApiKey        string `conf:"noprint"`
		}
		Analysis struct {
			TaskTimeout time.Duration `conf:"default:45s"`
			PromptsFile string
		}
		Logger struct {
			LogDirectory string
		}
	}{
		Version: conf.Version{
			Build: version,
			Desc:  buildTime,
		},
	}

	help, err := conf.Parse("TALKSCOPE", &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =================================================================================================================
	// Application Logger

	log, err := logger.New("TALKSCOPE-API", cfg.Logger.LogDirectory)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Sync()

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =================================================================================================================
	// Session Store

	ctx := context.Background()

	store, err := session.Open(ctx, log, session.Settings{
		Backend:       cfg.Session.Backend,
		RedisHost:     cfg.Session.RedisHost,
		RedisPassword: cfg.Session.RedisPassword,
		PostgresDSN:   cfg.Session.PostgresDSN,
		Config: session.Config{
			IdleTTL:    cfg.Session.IdleTTL,
			MaxHistory: cfg.Session.MaxHistory,
		},
	})
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	// =================================================================================================================
	// Analysis Model

	var completer analysis.Completer
	if cfg.OpenAI.APIKey != "" {
		completer = llm.New(llm.Config{
			APIKey:          cfg.OpenAI.APIKey,
			Model:           cfg.OpenAI.Model,
			BaseURL:         cfg.OpenAI.BaseURL,
			MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
		})
	} else {
		log.Infow("startup", "WARNING", "no OpenAI key configured, model analyzers disabled")
	}

	// =================================================================================================================
	// Emotion Recognition

	var recognizer analysis.EmotionRecognizer
	if cfg.Emotion.VoiceEndpoint != "" || cfg.Emotion.TextEndpoint != "" {
		recognizer = emotion.NewClient(emotion.Config{
			VoiceEndpoint: cfg.Emotion.VoiceEndpoint,
			TextEndpoint:  cfg.Emotion.TextEndpoint,
			APIKey:        cfg.Emotion.ApiKey,
		})
	} else {
		log.Infow("startup", "WARNING", "no emotion endpoints configured, emotion analyzer disabled")
	}

	// =================================================================================================================
	// Speech2Text and Translation

	var transcriber pipeline.Transcriber
	if cfg.Google.CredentialsPath != "" {
		t, err := google.NewTranscriber(google.SpeechConfig{
			CredentialsPath: cfg.Google.CredentialsPath,
			LanguageCode:    cfg.Google.LanguageCode,
			MinSpeakers:     cfg.Google.MinSpeakers,
			MaxSpeakers:     cfg.Google.MaxSpeakers,
		})
		if err != nil {
			return fmt.Errorf("constructing transcriber: %w", err)
		}
		defer t.Close()
		transcriber = t
	} else {
		log.Infow("startup", "WARNING", "no Google credentials configured, audio endpoints disabled")
	}

	var translator pipeline.Translator
	if cfg.Google.CredentialsPath != "" && cfg.Google.TranslationTarget != "" {
		t, err := google.NewTranslator(cfg.Google.CredentialsPath, cfg.Google.TranslationSource, cfg.Google.TranslationTarget)
		if err != nil {
			return fmt.Errorf("constructing translator: %w", err)
		}
		defer t.Close()
		translator = t
	}

	// =================================================================================================================
	// Analysis Orchestrator and Pipeline

	prompts := analysis.DefaultPrompts()
	if cfg.Analysis.PromptsFile != "" {
		prompts, err = analysis.LoadPrompts(cfg.Analysis.PromptsFile)
		if err != nil {
			return fmt.Errorf("loading prompts: %w", err)
		}
	}

	orchestrator := analysis.NewOrchestrator(analysis.Settings{
		Logger:      log,
		Completer:   completer,
		Emotion:     recognizer,
		Prompts:     prompts,
		TaskTimeout: cfg.Analysis.TaskTimeout,
	})

	broker := pubsub.NewBroker()

	pipe := pipeline.New(pipeline.Settings{
		Logger:       log,
		Store:        store,
		Orchestrator: orchestrator,
		Broker:       broker,
		Transcriber:  transcriber,
		Translator:   translator,
	})

	// =================================================================================================================
	// HTTP Server

	if err := os.MkdirAll(cfg.Upload.ScratchDirectory, 0o755); err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}

	api := http.Server{
		Addr: cfg.Web.Host,
		Handler: handlers.New(handlers.Config{
			Log:            log,
			Pipeline:       pipe,
			Store:          store,
			Broker:         broker,
			Uploads:        upload.NewStore(cfg.Upload.ScratchDirectory),
			MaxUploadBytes: cfg.Upload.MaxBytes,
		}),
		ReadTimeout: cfg.Web.ReadTimeout,
		IdleTimeout: cfg.Web.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =================================================================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(ctx, cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
