package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/language"
	"github.com/yehx1/video-translate/internal/queue"
)

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		title  string
		lang   string
		format string
		burn   bool
		voice  string
	)

	cmd := &cobra.Command{
		Use:   "add <video-file>",
		Short: "Queue a video for translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			videoFile, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			code := language.Normalize(lang)
			if code == "" {
				return fmt.Errorf("unsupported target language %q", lang)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if max := cfg.Dispatcher.MaxQueuedPerUser; max > 0 {
				count, err := store.CountQueuedForUser(cmd.Context(), userID, 0)
				if err != nil {
					return err
				}
				if count >= max {
					return queue.ErrUserQueueFull
				}
			}

			task, err := store.NewTask(cmd.Context(), queue.NewTaskParams{
				UserID:         userID,
				Title:          title,
				VideoFile:      videoFile,
				TargetLanguage: code,
				TargetLangName: language.DisplayName(code),
				SubtitleFormat: format,
				BurnSubtitle:   burn,
				TTSVoice:       voice,
				MaxAttempts:    cfg.Dispatcher.MaxAttempts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d queued for %s\n", task.ID, task.QueuedFor)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Owning user id")
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&lang, "lang", "en", "Target language code or name")
	cmd.Flags().StringVar(&format, "format", "srt", "Subtitle format (srt or ass)")
	cmd.Flags().BoolVar(&burn, "burn", false, "Burn captions into the video")
	cmd.Flags().StringVar(&voice, "voice", "", "Speech synthesis voice")
	return cmd
}
