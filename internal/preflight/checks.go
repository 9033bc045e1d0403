package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// CheckBinary verifies that command resolves on PATH (or as a path).
func CheckBinary(name, command string) Result {
	if command == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found", command)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEndpoint verifies that the host behind rawURL answers HTTP. Any
// response below 500 counts as reachable; the key API answers 4xx without a
// job-specific path.
func CheckEndpoint(ctx context.Context, name, rawURL string) Result {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url %q", rawURL)}
	}
	target := parsed.Scheme + "://" + parsed.Host

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("%s (status %d)", parsed.Host, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", parsed.Host)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	return err.Error()
}
