package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
)

func (fp *Persistence) LoadContext(_ context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	path, err := fp.path(contextsDir, tenantID, conversationID+".json")
	if err != nil {
		return nil, persistence.NewStoreError("LoadContext", err, tenantID, conversationID)
	}

	var execCtx models.ExecutionContext

	found, err := readJSON(path, &execCtx)
	if err != nil {
		return nil, persistence.NewStoreError("LoadContext", err, tenantID, conversationID)
	}

	if !found {
		return nil, persistence.NewStoreError("LoadContext", persistence.ErrExecutionContextNotFound, tenantID, conversationID)
	}

	if execCtx.Variables == nil {
		execCtx.Variables = make(map[string]any)
	}

	return &execCtx, nil
}

func (fp *Persistence) SaveContext(_ context.Context, execCtx *models.ExecutionContext) error {
	path, err := fp.path(contextsDir, execCtx.TenantID, execCtx.ConversationID+".json")
	if err != nil {
		return persistence.NewStoreError("SaveContext", err, execCtx.TenantID, execCtx.ConversationID)
	}

	err = writeJSON(path, execCtx)
	if err != nil {
		return persistence.NewStoreError("SaveContext", err, execCtx.TenantID, execCtx.ConversationID)
	}

	return nil
}

func (fp *Persistence) DeleteContext(_ context.Context, tenantID, conversationID string) error {
	path, err := fp.path(contextsDir, tenantID, conversationID+".json")
	if err != nil {
		return persistence.NewStoreError("DeleteContext", err, tenantID, conversationID)
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewStoreError("DeleteContext", err, tenantID, conversationID)
	}

	return nil
}

// DueWaits scans every stored context. Fine for development volumes; the
// postgresql and redis stores keep an index instead.
func (fp *Persistence) DueWaits(_ context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	var due []*models.ExecutionContext

	root := filepath.Join(fp.root, contextsDir)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}

			return err
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}

		var execCtx models.ExecutionContext

		if _, err := readJSON(path, &execCtx); err != nil {
			// Skip invalid files
			return nil
		}

		if persistence.Due(&execCtx, now) {
			due = append(due, &execCtx)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution contexts: %w", err)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}
