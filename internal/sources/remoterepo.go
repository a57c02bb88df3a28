package sources

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// RemoteRepo fetches a git repository via a shallow single-branch clone and
// returns the same virtual-file shape Archive produces: a
// git.PlainClone into a temp dir, then a Disk walk over the checkout,
// validating repository accessibility before the clone starts.
type RemoteRepo struct {
	URL     string
	Ref     string // branch name; empty means the remote's default; tags are not resolved
	Exclude []string
}

func NewRemoteRepo(url, ref string, exclude []string) *RemoteRepo {
	if exclude == nil {
		exclude = DefaultExcludes
	}
	return &RemoteRepo{URL: url, Ref: ref, Exclude: exclude}
}

// checkAccessible validates the repository is reachable before any clone
// is attempted, using an in-memory remote so nothing touches disk yet.
func (r *RemoteRepo) checkAccessible() error {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{r.URL},
	})
	if _, err := remote.List(&git.ListOptions{}); err != nil {
		return fmt.Errorf("sources: repository %q not accessible: %w", r.URL, err)
	}
	return nil
}

func (r *RemoteRepo) Fetch() ([]Entry, error) {
	if err := r.checkAccessible(); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "ingestor-remoterepo-*")
	if err != nil {
		return nil, fmt.Errorf("sources: create clone dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	opts := &git.CloneOptions{
		URL:          r.URL,
		Depth:        1,
		SingleBranch: true,
	}
	if r.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(r.Ref)
	}
	if _, err := git.PlainClone(tmpDir, false, opts); err != nil {
		return nil, fmt.Errorf("sources: clone %q: %w", r.URL, err)
	}

	exclude := append(append([]string{}, r.Exclude...), "**/.git/**")
	disk := NewDisk(tmpDir, nil, exclude)
	entries, err := disk.List()
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(e.AbsPath)
		if err != nil {
			return nil, fmt.Errorf("sources: read %q: %w", e.RelPath, err)
		}
		e.AbsPath = ""
		e.Content = string(data)
		e.IsVirtual = true
		out = append(out, e)
	}
	return out, nil
}
