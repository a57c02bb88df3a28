package content

import "context"

// Hybrid dispatches each ref to Disk or Virtual by its IsVirtual flag and
// merges the results — §4.1's "hybrid partitions by isVirtual and merges".
// This is the provider the processor wires up in practice, since a single
// project tree commonly mixes on-disk files with graph-resident ones
// ingested via ingestVirtualFiles.
type Hybrid struct {
	Disk    *Disk
	Virtual *Virtual
}

func NewHybrid(disk *Disk, virtual *Virtual) *Hybrid {
	return &Hybrid{Disk: disk, Virtual: virtual}
}

func (h *Hybrid) route(ref FileRef) Provider {
	if ref.IsVirtual {
		return h.Virtual
	}
	return h.Disk
}

func (h *Hybrid) Read(ctx context.Context, ref FileRef) ([]byte, error) {
	return h.route(ref).Read(ctx, ref)
}

func (h *Hybrid) ReadWithHash(ctx context.Context, ref FileRef) ([]byte, string, error) {
	return h.route(ref).ReadWithHash(ctx, ref)
}

func (h *Hybrid) Exists(ctx context.Context, ref FileRef) (bool, error) {
	return h.route(ref).Exists(ctx, ref)
}

func (h *Hybrid) ReadBatch(ctx context.Context, refs []FileRef) (map[string][]byte, map[string]string, map[string]error) {
	var diskRefs, virtualRefs []FileRef
	for _, ref := range refs {
		if ref.IsVirtual {
			virtualRefs = append(virtualRefs, ref)
		} else {
			diskRefs = append(diskRefs, ref)
		}
	}

	content := make(map[string][]byte, len(refs))
	hashes := make(map[string]string, len(refs))
	errs := make(map[string]error)

	mergeInto := func(c map[string][]byte, h2 map[string]string, e map[string]error) {
		for k, v := range c {
			content[k] = v
		}
		for k, v := range h2 {
			hashes[k] = v
		}
		for k, v := range e {
			errs[k] = v
		}
	}

	if len(diskRefs) > 0 {
		c, h2, e := h.Disk.ReadBatch(ctx, diskRefs)
		mergeInto(c, h2, e)
	}
	if len(virtualRefs) > 0 {
		c, h2, e := h.Virtual.ReadBatch(ctx, virtualRefs)
		mergeInto(c, h2, e)
	}
	return content, hashes, errs
}
