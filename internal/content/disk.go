package content

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
)

// Disk reads file bytes straight off the filesystem by absolute path.
// ReadBatch parallelizes reads with a bounded worker pool, grounded on the
// errgroup.WithContext + SetLimit idiom this codebase's ingestion steps use
// for per-item fan-out.
type Disk struct {
	Concurrency int
}

func NewDisk(concurrency int) *Disk {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Disk{Concurrency: concurrency}
}

func (d *Disk) Read(ctx context.Context, ref FileRef) ([]byte, error) {
	if ref.AbsPath == "" {
		return nil, pkgerrors.New(pkgerrors.KindNotFound, ref.UUID, fmt.Errorf("disk content provider: empty absolute path"))
	}
	b, err := os.ReadFile(ref.AbsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.New(pkgerrors.KindNotFound, ref.UUID, err)
		}
		return nil, pkgerrors.New(pkgerrors.KindUnreadable, ref.UUID, err)
	}
	return b, nil
}

func (d *Disk) ReadWithHash(ctx context.Context, ref FileRef) ([]byte, string, error) {
	b, err := d.Read(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return b, HashBytes(b), nil
}

func (d *Disk) Exists(ctx context.Context, ref FileRef) (bool, error) {
	if ref.AbsPath == "" {
		return false, nil
	}
	_, err := os.Stat(ref.AbsPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, pkgerrors.New(pkgerrors.KindUnreadable, ref.UUID, err)
}

func (d *Disk) ReadBatch(ctx context.Context, refs []FileRef) (map[string][]byte, map[string]string, map[string]error) {
	content := make(map[string][]byte, len(refs))
	hashes := make(map[string]string, len(refs))
	errs := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Concurrency)

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			b, hash, err := d.ReadWithHash(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[ref.UUID] = err
				return nil
			}
			content[ref.UUID] = b
			hashes[ref.UUID] = hash
			return nil
		})
	}
	_ = g.Wait()
	return content, hashes, errs
}
