// Package procrun runs external commands on behalf of a task, polling the
// cancel registry so a stop request terminates the whole process group
// within a fraction of a second.
package procrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/services"
)

const (
	defaultPollInterval = 200 * time.Millisecond
	// stderrTailLimit bounds the stderr excerpt attached to command failures.
	stderrTailLimit = 2000
)

// Runner executes commands in their own process group and registers them
// with the cancel registry for the duration of the run.
type Runner struct {
	registry     *cancel.Registry
	pollInterval time.Duration
}

// New returns a Runner bound to the given registry.
func New(registry *cancel.Registry) *Runner {
	return &Runner{registry: registry, pollInterval: defaultPollInterval}
}

// Run executes the command and discards stdout. See Output.
func (r *Runner) Run(ctx context.Context, taskID int64, name string, args ...string) error {
	_, err := r.run(ctx, taskID, name, args)
	return err
}

// Output executes the command and returns its stdout. Both output streams are
// buffered in memory and only inspected after the process exits; nothing
// reads the pipes while the command runs. A stop request kills the process
// group and yields a cancelled error; a non-zero exit yields a command-failed
// error carrying the tail of stderr.
func (r *Runner) Output(ctx context.Context, taskID int64, name string, args ...string) (string, error) {
	return r.run(ctx, taskID, name, args)
}

func (r *Runner) run(ctx context.Context, taskID int64, name string, args []string) (string, error) {
	if r.registry != nil && r.registry.IsStopRequested(taskID) {
		return "", services.Wrap(services.ErrCancelled, "", name, "stop requested before start", nil)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrCommandFailed, "", name, "start", err)
	}
	pgid := cmd.Process.Pid

	if r.registry != nil {
		r.registry.Register(taskID, pgid)
		defer r.registry.Unregister(taskID, pgid)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	poll := r.pollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				return stdout.String(), commandFailed(name, args, err, &stderr)
			}
			return stdout.String(), nil
		case <-ticker.C:
			if r.registry != nil && r.registry.IsStopRequested(taskID) {
				cancel.KillGroup(pgid)
				<-done
				return "", services.Wrap(services.ErrCancelled, "", name, "stopped by request", nil)
			}
		case <-ctx.Done():
			cancel.KillGroup(pgid)
			<-done
			return "", services.Wrap(services.ErrCancelled, "", name, "context cancelled", ctx.Err())
		}
	}
}

func commandFailed(name string, args []string, waitErr error, stderr *bytes.Buffer) error {
	detail := fmt.Sprintf("%s %s", name, strings.Join(args, " "))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	tail := Tail(stderr.String(), stderrTailLimit)
	message := "exit"
	if tail != "" {
		message = "stderr tail: " + tail
	}
	return services.Wrap(services.ErrCommandFailed, "", detail, message, waitErr)
}

// Tail returns the last limit runes of s.
func Tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[len(runes)-limit:])
}
