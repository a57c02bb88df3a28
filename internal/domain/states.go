package domain

// FileState is the per-file lifecycle vocabulary (§3.4).
type FileState string

const (
	FileDiscovered FileState = "discovered"
	FileParsing    FileState = "parsing"
	FileParsed     FileState = "parsed"
	FileRelations  FileState = "relations"
	FileLinked     FileState = "linked"
	FileEntities   FileState = "entities"
	FileEmbedding  FileState = "embedding"
	FileEmbedded   FileState = "embedded"
	FileError      FileState = "error"
)

// NodeState is the per-node lifecycle vocabulary (§4.3). It shares its
// vocabulary with FileState but is a distinct, orthogonal machine: nodes
// reach "ready" where files reach "embedded", and nodes have no "relations"
// state (relationship resolution operates on the file's parsed graph, not
// per node).
type NodeState string

const (
	NodeDiscovered NodeState = "discovered"
	NodeParsing    NodeState = "parsing"
	NodeParsed     NodeState = "parsed"
	NodeLinked     NodeState = "linked"
	NodeEntities   NodeState = "entities"
	NodeEmbedding  NodeState = "embedding"
	NodeReady      NodeState = "ready"
	NodeError      NodeState = "error"
)

// ErrorCause is the typed cause recorded on a file that transitioned to
// FileError (§3.4).
type ErrorCause string

const (
	CauseParse     ErrorCause = "parse"
	CauseRelations ErrorCause = "relations"
	CauseEntities  ErrorCause = "entities"
	CauseEmbed     ErrorCause = "embed"
)
