// file: internal/tagger/tools.go
// version: 1.0.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-1e2f3a4b5c6d

package tagger

import (
	"fmt"
	"os/exec"
)

// ErrToolNotFound is returned when the required external tool is not installed.
var ErrToolNotFound = fmt.Errorf("required external tool not found")

// findTool checks if a command-line tool exists on the system PATH.
func findTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return path, nil
}
