// Package sources implements the three ways a project's files reach the
// pipeline (§6.4): a disk root walked with include/exclude globs, a ZIP
// archive buffer, and a remote git repository. All three produce the same
// Entry shape so the processor's IngestVirtualFiles doesn't need to know
// which one supplied a given file.
package sources

// Entry is one file discovered by a source, ready to become a
// processor.VirtualFile or a disk-backed filestate.DiscoverCandidate.
type Entry struct {
	RelPath   string
	AbsPath   string // set for disk; empty for archive/remote-repo
	Name      string
	Extension string
	Directory string
	Content   string // populated for archive/remote-repo; empty for disk
	IsVirtual bool
}

// DefaultExcludes is the default exclude list for build artifacts and VCS
// metadata that archive and remote-repo sources apply unless the caller
// overrides it (§6.4 "archive: ... with default exclude list for build
// artifacts").
var DefaultExcludes = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/vendor/**",
	"**/target/**",
	"**/.venv/**",
	"**/__pycache__/**",
	"**/*.min.js",
	"**/*.map",
}
