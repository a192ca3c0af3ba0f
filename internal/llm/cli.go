package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CLIClient runs a local agent CLI in print mode (claude -p compatible) and
// reads the completion from its JSON output. No API key is needed; the CLI
// owns its own credentials.
type CLIClient struct {
	opts   Options
	logger *zap.Logger
}

func NewCLIClient(opts Options, logger *zap.Logger) *CLIClient {
	if opts.Command == "" {
		opts.Command = "claude"
	}
	return &CLIClient{opts: opts, logger: logger}
}

func (c *CLIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	args := []string{"-p", "--output-format", "json"}
	if req.System != "" {
		args = append(args, "--system-prompt", req.System)
	}
	if c.opts.Model != "" {
		args = append(args, "--model", c.opts.Model)
	}
	args = append(args, req.Prompt)

	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	cmd.Env = envWithout("CLAUDECODE")
	// SIGTERM lets the CLI release its session files; SIGKILL follows after WaitDelay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("running %s: %w", c.opts.Command, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with code %d: %s", c.opts.Command, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("running %s: %w", c.opts.Command, err)
	}

	text, err := parseCLIOutput(output)
	if err != nil {
		return "", fmt.Errorf("%s %w", c.opts.Command, err)
	}
	c.logger.Debug("cli completion",
		zap.String("command", c.opts.Command),
		zap.Duration("took", time.Since(start)),
		zap.Int("output_len", len(text)),
	)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// parseCLIOutput extracts the answer from `--output-format json`, which
// wraps it as {"type":"result","result":"...","is_error":false}. An envelope
// with is_error set is a failure even when the process exited 0. Anything
// that is not that envelope is returned as plain text.
func parseCLIOutput(output []byte) (string, error) {
	var wrapper struct {
		Subtype string  `json:"subtype"`
		Result  *string `json:"result"`
		IsError bool    `json:"is_error"`
	}
	if err := json.Unmarshal(output, &wrapper); err != nil || (wrapper.Result == nil && !wrapper.IsError) {
		return string(output), nil
	}
	if wrapper.IsError {
		msg := wrapper.Subtype
		if wrapper.Result != nil && *wrapper.Result != "" {
			msg = *wrapper.Result
		}
		return "", fmt.Errorf("reported an error: %s", msg)
	}
	return *wrapper.Result, nil
}

func envWithout(key string) []string {
	prefix := key + "="
	var env []string
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			env = append(env, e)
		}
	}
	return env
}
