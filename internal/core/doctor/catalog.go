package doctor

import (
	"context"
	"fmt"
)

// QuickChecker runs a database integrity check, returning "ok" when healthy.
type QuickChecker interface {
	QuickCheck(ctx context.Context) (string, error)
}

// CatalogCheck runs the catalog database integrity check. A nil checker
// means the catalog is not database backed.
type CatalogCheck struct {
	db QuickChecker
}

func NewCatalogCheck(db QuickChecker) *CatalogCheck {
	return &CatalogCheck{db: db}
}

func (c *CatalogCheck) Name() string { return "Catalog" }

func (c *CatalogCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	if c.db == nil {
		result.warn("catalog", "not backed by a database")
		return result
	}

	res, err := c.db.QuickCheck(ctx)
	switch {
	case err != nil:
		result.fail("quick_check", err.Error())
	case res != "ok":
		result.add("quick_check", StatusFail,
			fmt.Sprintf("%s; delete .kash/catalog.db and run `kash ws rebuild`", res), true)
	default:
		result.pass("quick_check", "ok")
	}
	return result
}
