package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habio/internal/constants"
)

var findProcessFunc = ps.FindProcess

// ErrNotRunning is returned when no live server owns the pid file
var ErrNotRunning = errors.New("habio server is not running")

// WritePidFile records addr and the current process id in dir. The returned
// function removes the file.
func WritePidFile(dir, addr string) (func(), error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dir, constants.ServerPidFileName)
	content := fmt.Sprintf("%s|%d", addr, os.Getpid())
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return func() { _ = os.Remove(path) }, nil
}

// FindRunning reads the pid file in dir and checks the recorded process is a
// live habio binary. It returns the listen address and pid.
func FindRunning(dir string) (string, int, error) {
	content, err := os.ReadFile(filepath.Join(dir, constants.ServerPidFileName))
	if err != nil {
		return "", 0, ErrNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return "", 0, errors.New("pid file is malformed")
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil || pid < 1 {
		return "", 0, errors.New("invalid process ID in pid file")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", 0, ErrNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.AppName) {
		return "", 0, fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.AppName, process.Executable())
	}
	return parts[0], pid, nil
}
