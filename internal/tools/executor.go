package tools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures a tool client.
type Option func(*settings)

type settings struct {
	exec Executor
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *settings) {
		if exec != nil {
			s.exec = exec
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{exec: commandExecutor{}}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// stderrTailLines bounds how much stderr is echoed back in errors.
const stderrTailLines = 8

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var tail []string
	var tailMu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			tailMu.Lock()
			tail = append(tail, scanner.Text())
			if len(tail) > stderrTailLines {
				tail = tail[len(tail)-stderrTailLines:]
			}
			tailMu.Unlock()
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tailMu.Lock()
		detail := strings.Join(tail, "; ")
		tailMu.Unlock()
		if detail != "" {
			return fmt.Errorf("%s exited: %w (%s)", binary, err, detail)
		}
		return fmt.Errorf("%s exited: %w", binary, err)
	}
	return nil
}
