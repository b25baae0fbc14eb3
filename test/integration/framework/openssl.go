package framework

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// OpenSSL wraps the openssl binary for interop testing.
type OpenSSL struct {
	t              *testing.T
	binary         string
	defaultTimeout time.Duration
}

// OpenSSLConfig holds configuration for the openssl wrapper.
type OpenSSLConfig struct {
	// Binary is the path to openssl (default: "openssl").
	Binary string

	// DefaultTimeout bounds each command (default: 30s).
	DefaultTimeout time.Duration
}

// NewOpenSSL creates a new openssl wrapper. The test is skipped when the
// binary cannot be found.
func NewOpenSSL(t *testing.T, config OpenSSLConfig) *OpenSSL {
	if config.Binary == "" {
		config.Binary = "openssl"
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 30 * time.Second
	}
	if _, err := exec.LookPath(config.Binary); err != nil {
		t.Skipf("openssl not available: %v", err)
	}
	return &OpenSSL{t: t, binary: config.Binary, defaultTimeout: config.DefaultTimeout}
}

// SClient connects with `openssl s_client`, sends input and returns
// everything the session printed. extra is appended to the arguments,
// e.g. "-tls1_2". -ign_eof keeps the session up after input is sent, so
// the command ends at the timeout and its output is returned.
func (o *OpenSSL) SClient(addr, input string, extra ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.defaultTimeout)
	defer cancel()

	args := append([]string{"s_client", "-connect", addr, "-quiet", "-ign_eof"}, extra...)
	cmd := exec.CommandContext(ctx, o.binary, args...)
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	o.t.Logf("running: %s %s", o.binary, strings.Join(args, " "))
	err := cmd.Run()
	if stderr.Len() > 0 {
		o.t.Logf("[s_client stderr] %s", stderr.String())
	}
	if err != nil && stdout.Len() == 0 {
		return "", fmt.Errorf("s_client: %w", err)
	}
	return stdout.String(), nil
}
