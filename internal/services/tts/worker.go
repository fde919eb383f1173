package tts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/services"
)

const defaultRequestTimeout = 300 * time.Second

// synthesisRequest is one line of JSON written to the worker's stdin.
type synthesisRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	OutPath  string `json:"out_path"`
}

// synthesisResponse is one line of JSON read back from the worker's stdout.
type synthesisResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Worker manages a resident synthesis subprocess that accepts line-delimited
// JSON requests on stdin and answers one JSON line per request on stdout.
// Requests are serialized; the model load is expensive so the process stays
// up across tasks.
type Worker struct {
	command        []string
	requestTimeout time.Duration
	logger         *slog.Logger

	mu     sync.Mutex
	proc   *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
}

// NewWorker builds a worker that will launch the given command on first use.
func NewWorker(command []string, requestTimeoutSeconds int, logger *slog.Logger) *Worker {
	timeout := defaultRequestTimeout
	if requestTimeoutSeconds > 0 {
		timeout = time.Duration(requestTimeoutSeconds) * time.Second
	}
	return &Worker{
		command:        command,
		requestTimeout: timeout,
		logger:         logging.NewComponentLogger(logger, "tts-worker"),
	}
}

// Available reports whether a worker command is configured.
func (w *Worker) Available() bool {
	return len(w.command) > 0
}

// Synthesize sends one request to the worker and waits for its reply. The
// worker process is started lazily. A request that exceeds the per-request
// timeout kills the process and returns a timeout error; the caller restarts
// by simply issuing another request.
func (w *Worker) Synthesize(text, voice, language, outPath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureStarted(); err != nil {
		return err
	}

	line, err := json.Marshal(synthesisRequest{
		Text:     text,
		Voice:    voice,
		Language: language,
		OutPath:  outPath,
	})
	if err != nil {
		return fmt.Errorf("tts worker: encode request: %w", err)
	}
	if _, err := w.stdin.Write(append(line, '\n')); err != nil {
		w.shutdownLocked()
		return services.Wrap(services.ErrWorkerInit, "", "tts worker", "write request failed", err)
	}

	type scanResult struct {
		line string
		err  error
	}
	resultCh := make(chan scanResult, 1)
	scanner := w.stdout
	go func() {
		if scanner.Scan() {
			resultCh <- scanResult{line: scanner.Text()}
			return
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		resultCh <- scanResult{err: err}
	}()

	timer := time.NewTimer(w.requestTimeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		if result.err != nil {
			w.shutdownLocked()
			return services.Wrap(services.ErrWorkerInit, "", "tts worker", "worker exited mid-request", result.err)
		}
		var resp synthesisResponse
		if err := json.Unmarshal([]byte(result.line), &resp); err != nil {
			w.shutdownLocked()
			return services.Wrap(services.ErrWorkerInit, "", "tts worker", "unparseable worker reply", err)
		}
		if !resp.OK {
			return services.Wrap(services.ErrCommandFailed, "", "tts worker", resp.Error, nil)
		}
		return nil
	case <-timer.C:
		w.shutdownLocked()
		return services.Wrap(services.ErrTimeout, "", "tts worker",
			fmt.Sprintf("no reply within %s", w.requestTimeout), nil)
	}
}

// Restart tears down the current process so the next request launches a
// fresh one.
func (w *Worker) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdownLocked()
}

// Close terminates the worker process if running.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdownLocked()
}

func (w *Worker) ensureStarted() error {
	if w.proc != nil {
		return nil
	}
	if len(w.command) == 0 {
		return services.Wrap(services.ErrConfiguration, "", "tts worker", "no worker command configured", nil)
	}

	cmd := exec.Command(w.command[0], w.command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return services.Wrap(services.ErrWorkerInit, "", "tts worker", "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrWorkerInit, "", "tts worker", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrWorkerInit, "", "tts worker", "start worker process", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	w.proc = cmd
	w.stdin = stdin
	w.stdout = scanner
	w.logger.Info("synthesis worker started", logging.Int("pid", cmd.Process.Pid))
	return nil
}

func (w *Worker) shutdownLocked() {
	if w.proc == nil {
		return
	}
	pid := w.proc.Process.Pid
	_ = w.stdin.Close()
	cancel.KillGroup(pid)
	_ = w.proc.Wait()
	w.proc = nil
	w.stdin = nil
	w.stdout = nil
	w.logger.Info("synthesis worker stopped", logging.Int("pid", pid))
}
