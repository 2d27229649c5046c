// Package file provides file-based persistence for flows, triggers and
// execution contexts. Every record is one JSON document under the root:
//
//	flows/{tenant}/{flow}.json
//	triggers/{tenant}.json
//	defaults/{tenant}.json
//	execution_contexts/{tenant}/{conversation}.json
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KallebyX/simao-sub001/pkg/persistence"
)

const (
	flowsDir    = "flows"
	triggersDir = "triggers"
	defaultsDir = "defaults"
	contextsDir = "execution_contexts"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
	// mu serializes read-modify-write cycles of the per-tenant lists.
	mu sync.Mutex
}

var _ persistence.Persistence = (*Persistence)(nil)

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Root returns the directory records are stored under.
func (fp *Persistence) Root() string {
	return fp.root
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks that the root directory exists or can be created.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(fp.root, 0750)
	if err != nil {
		return fmt.Errorf("file persistence root unavailable: %w", err)
	}

	return nil
}

func (fp *Persistence) path(parts ...string) (string, error) {
	for _, part := range parts[1:] {
		if err := persistence.ValidateID(strings.TrimSuffix(part, ".json")); err != nil {
			return "", err
		}
	}

	return filepath.Join(append([]string{fp.root}, parts...)...), nil
}

// readJSON decodes path into out and reports whether the file existed.
func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path components are validated
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, out)
	if err != nil {
		return true, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, value any) error {
	err := os.MkdirAll(filepath.Dir(path), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
