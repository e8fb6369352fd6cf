package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/kash/internal/store/filestore"
)

// Workspace is the part of the file store the checks inspect.
type Workspace interface {
	Root() string
	StateDir() string
	CheckLock(ctx context.Context) error
	Verify(ctx context.Context) ([]filestore.Problem, error)
	ScanErrors() []error
	TempFiles() ([]string, error)
	RemoveTempFiles(ctx context.Context, paths []string) error
}

// WorkspaceCheck verifies the state directory is writable and the workspace
// lock is free.
type WorkspaceCheck struct {
	ws Workspace
}

func NewWorkspaceCheck(ws Workspace) *WorkspaceCheck {
	return &WorkspaceCheck{ws: ws}
}

func (c *WorkspaceCheck) Name() string { return "Workspace" }

func (c *WorkspaceCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if tmp, err := os.CreateTemp(c.ws.StateDir(), "doctor-*"); err != nil {
		result.fail(c.ws.Root(), fmt.Sprintf("not writable: %v", err))
	} else {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		result.pass(c.ws.Root(), "writable")
	}

	lockPath := filepath.Join(c.ws.StateDir(), "lock")
	if err := c.ws.CheckLock(ctx); err != nil {
		result.fail(lockPath, err.Error())
	} else {
		result.pass(lockPath, "free")
	}
	return result
}

// IndexCheck compares the index with the files on disk and lists files the
// last scan could not parse.
type IndexCheck struct {
	ws Workspace
}

func NewIndexCheck(ws Workspace) *IndexCheck {
	return &IndexCheck{ws: ws}
}

func (c *IndexCheck) Name() string { return "Index" }

func (c *IndexCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	problems, err := c.ws.Verify(ctx)
	if err != nil {
		result.fail("verify", err.Error())
		return result
	}
	for _, p := range problems {
		result.add(p.Path, StatusWarn, p.Reason+"; run `kash ws rebuild`", true)
	}
	for _, err := range c.ws.ScanErrors() {
		result.warn("unindexed file", err.Error())
	}

	if len(result.Findings) == 0 {
		result.pass("index", "consistent with disk")
	}
	return result
}

// TempFilesCheck reports leftovers of interrupted atomic writes and removes
// them when fix is set.
type TempFilesCheck struct {
	ws  Workspace
	fix bool
}

func NewTempFilesCheck(ws Workspace, fix bool) *TempFilesCheck {
	return &TempFilesCheck{ws: ws, fix: fix}
}

func (c *TempFilesCheck) Name() string { return "Temp Files" }

func (c *TempFilesCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	files, err := c.ws.TempFiles()
	switch {
	case err != nil:
		result.fail("scan", err.Error())
		return result
	case len(files) == 0:
		result.pass("temp files", "none")
		return result
	}

	if !c.fix {
		for _, f := range files {
			result.add(f, StatusWarn, "leftover from an interrupted write", true)
		}
		return result
	}

	if err := c.ws.RemoveTempFiles(ctx, files); err != nil {
		result.fail("remove", err.Error())
		return result
	}
	for _, f := range files {
		result.pass(f, "removed")
	}
	return result
}
