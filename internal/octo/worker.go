package octo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrWorkerClosed is returned by calls on a closed worker.
	ErrWorkerClosed = errors.New("engine worker closed")

	// ErrWorkerBroken is returned once the message stream failed. The
	// stream cannot be resynchronised, so the worker stays unusable.
	ErrWorkerBroken = errors.New("engine worker stream broken")
)

// shutdownGrace is how long Close waits for the engine to exit after its
// stdin was closed before killing it.
const shutdownGrace = 5 * time.Second

// EngineError is an error reported by the engine for one request. The
// worker remains usable.
type EngineError struct {
	Op      string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s", e.Op, e.Message)
}

type request struct {
	Op   string `msgpack:"op"`
	Seq  uint64 `msgpack:"seq"`
	Body any    `msgpack:"body,omitempty"`
}

type response struct {
	Seq   uint64             `msgpack:"seq"`
	Error string             `msgpack:"error,omitempty"`
	Body  msgpack.RawMessage `msgpack:"body,omitempty"`
}

// Worker exchanges request/response frames with one engine. Calls are
// serialized: the engine sees one request at a time.
//
// Thread-safety: Call and Close are safe for concurrent use.
type Worker struct {
	name string

	mu     sync.Mutex
	in     io.WriteCloser
	out    io.Reader
	seq    uint64
	broken error
	closed bool

	cmd    *exec.Cmd
	exited chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a worker over an already connected stream pair.
func NewWorker(name string, in io.WriteCloser, out io.Reader) *Worker {
	return &Worker{name: name, in: in, out: out}
}

// Start spawns the engine process argv and connects to its stdin and
// stdout. Stderr lines are forwarded to the log.
func Start(ctx context.Context, name string, argv []string) (*Worker, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("engine %s: empty command", name)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", name, err)
	}
	slog.Info("engine process spawned", "worker", name, "command", argv[0], "pid", cmd.Process.Pid)

	w := NewWorker(name, stdin, stdout)
	w.cmd = cmd
	w.exited = make(chan struct{})

	stderrDone := make(chan struct{})
	w.wg.Add(2)
	go w.logStderr(stderr, stderrDone)
	go w.waitProcess(stderrDone)
	return w, nil
}

// Name returns the worker name used in logs.
func (w *Worker) Name() string {
	return w.name
}

// Call sends one request and decodes the response body into out (which may
// be nil). Calls are synchronous; ctx is only checked before sending.
func (w *Worker) Call(ctx context.Context, op string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkerClosed
	}
	if w.broken != nil {
		return fmt.Errorf("%w: %w", ErrWorkerBroken, w.broken)
	}

	w.seq++
	start := time.Now()
	if err := writeFrame(w.in, request{Op: op, Seq: w.seq, Body: body}); err != nil {
		return w.fail(err)
	}
	var resp response
	if err := readFrame(w.out, &resp); err != nil {
		return w.fail(err)
	}
	if resp.Seq != w.seq {
		return w.fail(fmt.Errorf("response sequence %d, want %d", resp.Seq, w.seq))
	}
	slog.Debug("engine call", "worker", w.name, "op", op, "seq", w.seq, "took", time.Since(start))

	if resp.Error != "" {
		return &EngineError{Op: op, Message: resp.Error}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := msgpack.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("engine %s: failed to decode %s response: %w", w.name, op, err)
	}
	return nil
}

// fail marks the stream broken. Caller holds w.mu.
func (w *Worker) fail(err error) error {
	w.broken = err
	slog.Error("engine stream failed", "worker", w.name, "error", err)
	return fmt.Errorf("%w: %w", ErrWorkerBroken, err)
}

// Close closes the engine's stdin and waits for the process to exit,
// killing it after a grace period.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	err := w.in.Close()
	w.mu.Unlock()

	if w.cmd != nil {
		select {
		case <-w.exited:
		case <-time.After(shutdownGrace):
			slog.Warn("engine did not exit, killing", "worker", w.name, "pid", w.cmd.Process.Pid)
			_ = w.cmd.Process.Kill()
		}
	}
	w.wg.Wait()
	return err
}

// logStderr forwards engine stderr lines, mapping Python-style level
// markers to slog levels.
func (w *Worker) logStderr(stderr io.Reader, done chan<- struct{}) {
	defer w.wg.Done()
	defer close(done)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			slog.Error("engine error", "worker", w.name, "log", line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			slog.Warn("engine warning", "worker", w.name, "log", line)
		default:
			slog.Debug("engine log", "worker", w.name, "log", line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("error reading engine stderr", "worker", w.name, "error", err)
	}
}

// waitProcess reaps the engine once its stderr is drained.
func (w *Worker) waitProcess(stderrDone <-chan struct{}) {
	defer w.wg.Done()
	defer close(w.exited)

	<-stderrDone
	err := w.cmd.Wait()

	w.mu.Lock()
	expected := w.closed
	w.mu.Unlock()

	switch {
	case err == nil:
		slog.Info("engine process exited cleanly", "worker", w.name, "pid", w.cmd.Process.Pid)
	case expected:
		slog.Debug("engine process exited (shutdown)", "worker", w.name, "pid", w.cmd.Process.Pid, "error", err)
	default:
		slog.Error("engine process exited unexpectedly", "worker", w.name, "pid", w.cmd.Process.Pid, "error", err)
	}
}
