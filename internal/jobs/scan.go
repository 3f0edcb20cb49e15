package jobs

import (
	"context"
	"io/fs"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

const scanConcurrency = 4

// scanSizes returns the byte size of each source, walking directories
// without following symlinks. Unreadable parts count as zero; the operation
// itself reports them.
func scanSizes(ctx context.Context, sources []string) ([]int64, int64) {
	sizes := make([]int64, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			sizes[i] = treeSize(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var total int64
	for _, n := range sizes {
		total += n
	}
	return sizes, total
}

func treeSize(ctx context.Context, root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.Type().IsRegular() {
			if fi, err := d.Info(); err == nil {
				total += fi.Size()
			}
		}
		return nil
	})
	return total
}
