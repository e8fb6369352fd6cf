package kash

import (
	"context"

	"github.com/colonyops/kash/internal/core/config"
	"github.com/colonyops/kash/internal/core/doctor"
	"github.com/colonyops/kash/internal/store/filestore"
)

// DoctorService runs health checks on the workspace and its configuration.
type DoctorService struct {
	store      *filestore.Store
	config     *config.Config
	configPath string
}

func NewDoctorService(store *filestore.Store, cfg *config.Config, configPath string) *DoctorService {
	return &DoctorService{
		store:      store,
		config:     cfg,
		configPath: configPath,
	}
}

// RunChecks executes all doctor checks. With autofix an index that disagrees
// with disk is rebuilt before checking, and stale temp files are removed.
func (d *DoctorService) RunChecks(ctx context.Context, autofix bool) doctor.Report {
	if autofix {
		if problems, err := d.store.Verify(ctx); err == nil && len(problems) > 0 {
			_ = d.store.Rebuild(ctx)
		}
	}

	checks := []doctor.Check{
		doctor.NewConfigCheck(d.config, d.configPath),
		doctor.NewWorkspaceCheck(d.store),
		doctor.NewIndexCheck(d.store),
		doctor.NewTempFilesCheck(d.store, autofix),
	}
	var qc doctor.QuickChecker
	if c, ok := d.store.Catalog().(doctor.QuickChecker); ok {
		qc = c
	}
	checks = append(checks, doctor.NewCatalogCheck(qc))

	return doctor.Run(ctx, checks...)
}
