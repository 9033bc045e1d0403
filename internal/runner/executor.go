package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Stream identifies which output stream a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run starts cmd, forwards each output line to onLine, and returns the exit
	// code. An error is returned only when the process could not be run at all.
	Run(ctx context.Context, cmd Command, onLine func(Stream, string)) (int, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, command Command, onLine func(Stream, string)) (int, error) {
	cmd := exec.CommandContext(ctx, command.Name, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	scan := func(r io.Reader, stream Stream) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanLinesOrCarriage)
		for scanner.Scan() {
			line := strings.ToValidUTF8(scanner.Text(), "�")
			mu.Lock()
			onLine(stream, line)
			mu.Unlock()
		}
		// Drain the remainder after an oversized line.
		_, _ = io.Copy(io.Discard, r)
	}

	wg.Add(2)
	go scan(stdout, Stdout)
	go scan(stderr, Stderr)
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return exitErr.ExitCode(), ctxErr
		}
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait command: %w", err)
}

// scanLinesOrCarriage splits on \n and on bare \r so progress bars that redraw
// a single terminal line still surface as individual lines.
func scanLinesOrCarriage(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, dropCR(data[:i]), nil
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			if i+1 == len(data) && !atEOF {
				return 0, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func dropCR(data []byte) []byte {
	if n := len(data); n > 0 && data[n-1] == '\r' {
		return data[:n-1]
	}
	return data
}
