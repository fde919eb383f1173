package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/dispatch"
	"github.com/yehx1/video-translate/internal/ipc"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/media"
	"github.com/yehx1/video-translate/internal/pipeline"
	"github.com/yehx1/video-translate/internal/procrun"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services/transcribe"
	"github.com/yehx1/video-translate/internal/services/translate"
	"github.com/yehx1/video-translate/internal/services/tts"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the task processing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// A second daemon against the same database would race admissions.
			lock := flock.New(filepath.Join(cfg.Paths.DataDir, "vtd.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another daemon already holds %s", lock.Path())
			}
			defer lock.Unlock()

			logger, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "vtd.log")},
			})
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open task store: %w", err)
			}
			defer store.Close()

			registry := cancel.NewRegistry()
			runner := procrun.New(registry)
			toolchain := media.NewToolchain(cfg.Media, runner, logger)
			transcriber := transcribe.NewService(cfg.Transcribe, runner, logger)
			translator := translate.NewClient(cfg.Translate)

			ttsWorker := tts.NewWorker(cfg.TTS.XTTSCommand, cfg.TTS.RequestTimeoutSeconds, logger)
			defer ttsWorker.Close()
			synthesizer := tts.NewService(cfg.TTS, toolchain, runner, ttsWorker, registry, logger)

			stage := pipeline.New(cfg, store, toolchain, transcriber, translator, synthesizer, registry, logger)
			dispatcher := dispatch.New(cfg.Dispatcher, store, stage, registry, logger)

			server, err := ipc.NewServer(runCtx, ipc.ServerParams{
				SocketPath: socketPathFor(cfg),
				Store:      store,
				Registry:   registry,
				WorkerID:   dispatcher.WorkerID(),
				StartedAt:  time.Now().UTC(),
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("start ipc server: %w", err)
			}
			server.Serve()
			defer server.Close()

			logger.Info("daemon starting",
				logging.String("database", store.Path()),
				logging.String("socket", socketPathFor(cfg)))
			return dispatcher.Run(runCtx)
		},
	}
}
