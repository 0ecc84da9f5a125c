package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"reframe/internal/config"
	"reframe/internal/daemon"
	"reframe/internal/ffmpeg"
	"reframe/internal/logging"
	"reframe/internal/queue"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return
	}

	encoder := ffmpeg.NewCLI(
		ffmpeg.WithBinary(cfg.FFmpegBinary()),
		ffmpeg.WithPolicy(ffmpeg.Policy{
			VideoCodec:   cfg.Encoder.VideoCodec,
			CRF:          cfg.Encoder.CRF,
			AudioCodec:   cfg.Encoder.AudioCodec,
			AudioBitrate: cfg.Encoder.AudioBitrate,
		}),
	)

	d, err := daemon.New(cfg, store, encoder, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("reframed shutting down")
}
