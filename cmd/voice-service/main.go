// main package for the voice service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/audio"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/config"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/dispatch"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/events"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/objectstore"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/provider/elevenlabs"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/server"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/store"
	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/worker"
)

const logFileName = "voice-service.log"

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// Bootstrap logger so config loading failures are captured somewhere.
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runService(ctx, cfg, log)
}

func runService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	agentStore, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open agent store: %w", err)
	}

	defer func() {
		closeErr := agentStore.Close()
		if closeErr != nil {
			log.Error("Failed to close agent store: %v", closeErr)
		}
	}()

	err = agentStore.Migrate()
	if err != nil {
		return fmt.Errorf("failed to migrate agent store: %w", err)
	}

	natsConnection, err := setupNATS(cfg)
	if err != nil {
		return err
	}

	if natsConnection != nil {
		defer natsConnection.Close()
	}

	audioStore, err := setupAudioStore(cfg, natsConnection)
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(cfg.ElevenLabs.MaxConcurrent, cfg.ElevenLabs.DispatchDelay(), log)

	providerClient := elevenlabs.New(
		cfg.ElevenLabs.BaseURL,
		cfg.ElevenLabs.APIKey,
		cfg.ElevenLabs.Timeout(),
		dispatcher,
		log,
	)

	var publisher core.EventPublisher
	if natsConnection != nil {
		publisher = events.NewWithConn(
			natsConnection,
			cfg.NATS.SynthesisCompletedSubject,
			cfg.NATS.VoiceClonedSubject,
			log,
		)
	}

	if cfg.NATS.WorkerEnabled {
		synthesisWorker := worker.NewNatsWorker(
			natsConnection,
			cfg.NATS.SynthesisRequestedSubject,
			providerClient,
			audioStore,
			log,
		)

		go func() {
			workerErr := synthesisWorker.Run(ctx)
			if workerErr != nil {
				log.Error("Synthesis worker exited with error: %v", workerErr)
			}
		}()
	}

	apiServer := server.New(
		server.Config{
			Host:              cfg.Server.Host,
			Port:              cfg.Server.Port,
			RequestsPerSecond: cfg.Server.RequestsPerSecond,
			Burst:             cfg.Server.Burst,
		},
		providerClient,
		agentStore,
		audioStore,
		publisher,
		dispatcher,
		log,
	)

	log.System("Voice service initialized: max_concurrent=%d timeout=%s audio_backend=%s",
		cfg.ElevenLabs.MaxConcurrent, cfg.ElevenLabs.Timeout(), cfg.Storage.AudioBackend)

	err = apiServer.ListenAndServe(ctx)
	if err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}

	return nil
}

// setupNATS dials the broker when NATS is enabled. A disabled broker is
// reported as a nil connection.
func setupNATS(cfg *config.Config) (*nats.Conn, error) {
	if !cfg.NATS.Enabled {
		return nil, nil
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	return natsConnection, nil
}

// setupAudioStore selects the audio backend. Config validation already
// guarantees the NATS backend only appears with a live connection.
func setupAudioStore(cfg *config.Config, natsConnection *nats.Conn) (core.AudioStore, error) {
	if cfg.Storage.AudioBackend == config.AudioBackendNATS {
		jetstreamContext, err := natsConnection.JetStream()
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}

		natsStore, err := objectstore.New(jetstreamContext, cfg.Storage.AudioBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS audio store: %w", err)
		}

		return natsStore, nil
	}

	diskStore, err := audio.New(cfg.Storage.AudioDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio store: %w", err)
	}

	return diskStore, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
