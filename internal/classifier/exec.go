package classifier

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
)

// execBackend runs a local inference command once per text. The text is
// appended as the last argument and the command prints a JSON object.
type execBackend struct {
	command string
	dir     string
	args    []string
	timeout time.Duration
}

func newExecBackend(cfg Config) (*execBackend, error) {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = "python3"
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("inference command not found at %s: %w", command, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &execBackend{
		command: path,
		args:    append([]string(nil), cfg.Args...),
		dir:     cfg.WorkDir,
		timeout: timeout,
	}, nil
}

// Classify executes the command and parses its output.
func (b *execBackend) Classify(ctx context.Context, text string) (model.Prediction, error) {
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), b.args...), text)
	cmd := exec.CommandContext(cmdCtx, b.command, args...)
	cmd.Dir = b.dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// The inference script exits non-zero but still prints a JSON error
	// object, so stdout is consulted before the exit status.
	if object, ok := extractObject(stdout.Bytes()); ok {
		return parsePrediction(object)
	}

	if cmdCtx.Err() != nil {
		return model.Prediction{}, fmt.Errorf("%w: inference interrupted: %w", common.ErrClassificationFailed, cmdCtx.Err())
	}
	if runErr != nil {
		if stderr.Len() > 0 {
			return model.Prediction{}, fmt.Errorf("%w: inference error: %s", common.ErrClassificationFailed, strings.TrimSpace(stderr.String()))
		}
		return model.Prediction{}, fmt.Errorf("%w: failed to execute inference: %w", common.ErrClassificationFailed, runErr)
	}
	return model.Prediction{}, fmt.Errorf("%w: no JSON in inference output", common.ErrClassificationFailed)
}

func (b *execBackend) Close() error {
	return nil
}
