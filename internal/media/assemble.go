package media

import (
	"context"
	"fmt"
	"strings"
)

// Clip is a synthesized audio segment placed on the output timeline.
type Clip struct {
	Path string
	// Offset is where the clip begins on the timeline, in seconds.
	Offset float64
}

// Tempo re-times an audio file by the given factor (>1 speeds up). ffmpeg's
// atempo filter only accepts 0.5..2.0 per instance, so larger factors are
// expressed as a chain.
func (t *Toolchain) Tempo(ctx context.Context, taskID int64, inPath, outPath string, factor float64) error {
	chain, err := atempoChain(factor)
	if err != nil {
		return err
	}
	return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary,
		"-y", "-i", inPath,
		"-filter:a", chain,
		outPath,
	)
}

// MixClips lays the clips onto a silent track of the given duration and
// mixes them into a single WAV. Offsets are honored via adelay.
func (t *Toolchain) MixClips(ctx context.Context, taskID int64, clips []Clip, duration float64, outPath string) error {
	if len(clips) == 0 {
		// Pure silence keeps the downstream mux uniform.
		return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary,
			"-y",
			"-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=44100:cl=stereo:d=%.3f", duration),
			outPath,
		)
	}

	args := []string{
		"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=44100:cl=stereo:d=%.3f", duration),
	}
	for _, clip := range clips {
		args = append(args, "-i", clip.Path)
	}

	var filter strings.Builder
	labels := make([]string, 0, len(clips)+1)
	labels = append(labels, "[0:a]")
	for i, clip := range clips {
		delayMillis := int(clip.Offset * 1000)
		if delayMillis < 0 {
			delayMillis = 0
		}
		fmt.Fprintf(&filter, "[%d:a]adelay=%d|%d[c%d];", i+1, delayMillis, delayMillis, i)
		labels = append(labels, fmt.Sprintf("[c%d]", i))
	}
	fmt.Fprintf(&filter, "%samix=inputs=%d:duration=first:dropout_transition=0,volume=%d[aout]",
		strings.Join(labels, ""), len(labels), len(labels))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[aout]",
		outPath,
	)
	return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary, args...)
}

// atempoChain builds an atempo filter expression for an arbitrary factor.
func atempoChain(factor float64) (string, error) {
	if factor <= 0 {
		return "", fmt.Errorf("invalid tempo factor %.3f", factor)
	}
	var stages []string
	remaining := factor
	for remaining > 2.0 {
		stages = append(stages, "atempo=2.0")
		remaining /= 2.0
	}
	for remaining < 0.5 {
		stages = append(stages, "atempo=0.5")
		remaining /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%.4f", remaining))
	return strings.Join(stages, ","), nil
}
