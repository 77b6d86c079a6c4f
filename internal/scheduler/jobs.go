package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// CoverSweepJobID is the id of the orphaned cover cleanup job.
const CoverSweepJobID = "cover-sweep"

// ImageReferences lists the cover images still referenced by books.
type ImageReferences interface {
	ReferencedImages(ctx context.Context) ([]string, error)
}

// CoverPruner removes stored covers that aren't referenced.
type CoverPruner interface {
	Prune(ctx context.Context, referenced []string, grace time.Duration) (int, error)
}

// CoverSweep returns a job that deletes uploaded covers older than grace
// which no book points to.
func CoverSweep(refs ImageReferences, pruner CoverPruner, grace time.Duration) JobFunc {
	return func(ctx context.Context) error {
		referenced, err := refs.ReferencedImages(ctx)
		if err != nil {
			return fmt.Errorf("failed to list referenced covers: %w", err)
		}
		removed, err := pruner.Prune(ctx, referenced, grace)
		if err != nil {
			return fmt.Errorf("failed to prune covers: %w", err)
		}
		log.Info("Cover sweep finished", "referenced", len(referenced), "removed", removed)
		return nil
	}
}
