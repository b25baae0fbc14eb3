// Package framework provides process helpers for echo interop tests.
package framework

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// EchoProcess manages an ossl-echo server binary for testing.
type EchoProcess struct {
	binaryPath string
	addr       string
	args       []string
	logFile    string

	mu            sync.Mutex
	cmd           *exec.Cmd
	started       bool
	stdout        *logWriter
	stderr        *logWriter
	logFileHandle *os.File
	done          chan struct{}
	ctx           context.Context
	cancelFunc    context.CancelFunc
}

// EchoProcessConfig holds configuration for an echo server process.
type EchoProcessConfig struct {
	// BinaryPath is the package directory, e.g. "cmd/ossl-echo".
	BinaryPath string

	// Addr is the listen address (default: 127.0.0.1:4433).
	Addr string

	// LogFile is an optional path to write logs to (in addition to stdout).
	LogFile string

	// ExtraArgs are additional command-line arguments.
	ExtraArgs []string
}

// NewEchoProcess creates a new server process manager.
func NewEchoProcess(config EchoProcessConfig) *EchoProcess {
	if config.Addr == "" {
		config.Addr = "127.0.0.1:4433"
	}
	args := append([]string{"server", "-addr", config.Addr, "-v"}, config.ExtraArgs...)

	ctx, cancel := context.WithCancel(context.Background())
	return &EchoProcess{
		binaryPath: config.BinaryPath,
		addr:       config.Addr,
		args:       args,
		logFile:    config.LogFile,
		done:       make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the server using `go run` and waits for it to come up.
func (d *EchoProcess) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("echo process already started")
	}

	absPath, err := filepath.Abs(d.binaryPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	binaryName := filepath.Base(d.binaryPath)

	cmdArgs := append([]string{"run", "."}, d.args...)
	d.cmd = exec.CommandContext(d.ctx, "go", cmdArgs...)
	d.cmd.Dir = absPath
	d.cmd.Env = append(os.Environ(),
		"PION_LOG_DEBUG=all",
		"PION_LOG_INFO=all",
	)

	if d.logFile != "" {
		logFile, err := os.OpenFile(d.logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		d.logFileHandle = logFile
	}

	d.stdout = newLogWriter(fmt.Sprintf("[%s stdout]", binaryName), d.logFileHandle)
	d.stderr = newLogWriter(fmt.Sprintf("[%s stderr]", binaryName), d.logFileHandle)
	d.cmd.Stdout = d.stdout
	d.cmd.Stderr = d.stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}
	d.started = true

	go func() {
		defer close(d.done)
		d.cmd.Wait()
	}()

	// go run compiles first; give it time before clients dial.
	time.Sleep(3 * time.Second)
	return nil
}

// Stop sends SIGTERM and waits for the process to exit.
func (d *EchoProcess) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	if d.cmd != nil && d.cmd.Process != nil {
		if err := d.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			d.cmd.Process.Kill()
		}
	}

	select {
	case <-d.done:
	case <-time.After(5 * time.Second):
		d.cancelFunc()
		<-d.done
	}
	d.cancelFunc()

	if d.logFileHandle != nil {
		d.logFileHandle.Close()
		d.logFileHandle = nil
	}

	d.started = false
	return nil
}

// Addr returns the address the server listens on.
func (d *EchoProcess) Addr() string {
	return d.addr
}

// IsRunning returns true if the process is currently running.
func (d *EchoProcess) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// logWriter prefixes each write with a label. It writes to stdout and
// optionally to a file.
type logWriter struct {
	prefix  string
	logFile *os.File
	mu      sync.Mutex
}

func newLogWriter(prefix string, logFile *os.File) *logWriter {
	return &logWriter{
		prefix:  prefix,
		logFile: logFile,
	}
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Printf("%s %s", w.prefix, string(p))
	if w.logFile != nil {
		fmt.Fprintf(w.logFile, "%s %s", w.prefix, string(p))
	}
	return len(p), nil
}
