package domain

import "time"

// NewProject builds the root namespace node (§3.1).
func NewProject(id, name, rootPath string, createdAt time.Time) *Node {
	n := NewNode(id, "Project")
	n.Set(PropProjectName, name)
	n.Set(PropRootPath, rootPath)
	n.Set(PropCreatedAt, createdAt)
	return n
}

// NewFile builds a File node. isVirtual files carry their bytes inline via
// rawContent; disk files leave it nil and are read through the Content
// Provider by absolute path.
func NewFile(projectID, relPath, absPath, name, ext, dir string, isVirtual bool, rawContent *string, rawContentHash string) *Node {
	id := FileUUID(projectID, relPath)
	n := NewNode(id, "File")
	n.Set(PropProjectID, projectID)
	n.Set(PropRelPath, relPath)
	n.Set(PropAbsPath, absPath)
	n.Set(PropFileName, name)
	n.Set(PropExtension, ext)
	n.Set(PropDirectory, dir)
	n.Set(PropIsVirtual, isVirtual)
	n.Set(PropRawContentHash, rawContentHash)
	n.Set(PropState, string(FileDiscovered))
	n.Set(PropStateChangedAt, time.Now())
	n.Set(PropRetryCount, 0)
	if rawContent != nil {
		n.Set(PropRawContent, *rawContent)
	}
	return n
}

// NewDirectory builds a Directory node for a path prefix.
func NewDirectory(projectID, path, absolutePath string, depth int) *Node {
	n := NewNode(DirectoryUUID(projectID, path), "Directory")
	n.Set(PropProjectID, projectID)
	n.Set(PropDirPath, path)
	n.Set(PropAbsPath, absolutePath)
	n.Set(PropDirDepth, depth)
	return n
}

// ScopeSpec carries the fields needed to construct a Scope node (§3.1).
type ScopeSpec struct {
	ProjectID     string
	FileUUID      string
	Name          string
	Content       string
	Description   string
	StartLine     int
	EndLine       int
	Type          string
	Language      string
	ParentUUID    string
	SignatureHash string
	Heritage      []string
	Decorators    []string
	Parameters    []string
	ReturnType    string
}

func NewScope(spec ScopeSpec) *Node {
	id := ScopeUUID(spec.FileUUID, spec.Name, spec.Type, spec.SignatureHash)
	n := NewNode(id, "Scope")
	n.Set(PropProjectID, spec.ProjectID)
	n.Set(PropFileUUID, spec.FileUUID)
	n.Set(PropName, spec.Name)
	n.Set(PropContent, spec.Content)
	n.Set(PropDescription, spec.Description)
	n.Set(PropStartLine, spec.StartLine)
	n.Set(PropEndLine, spec.EndLine)
	n.Set(PropScopeType, spec.Type)
	n.Set(PropLanguage, spec.Language)
	n.Set(PropState, string(NodeDiscovered))
	if spec.ParentUUID != "" {
		n.Set(PropParentUUID, spec.ParentUUID)
	}
	if len(spec.Heritage) > 0 {
		n.Set(PropHeritage, spec.Heritage)
	}
	if len(spec.Decorators) > 0 {
		n.Set(PropDecorators, spec.Decorators)
	}
	if len(spec.Parameters) > 0 {
		n.Set(PropParameters, spec.Parameters)
	}
	if spec.ReturnType != "" {
		n.Set(PropReturnType, spec.ReturnType)
	}
	return n
}

// DocumentSpec constructs any of the document-variant labels named in
// §3.1 (MarkdownDocument, MarkdownSection, CodeBlock, WebDocument, VueSFC,
// SvelteComponent, Stylesheet, CSSVariable, DataFile, DataSection,
// MediaFile, DocumentFile, PackageJson, ExternalLibrary, ExternalURL):
// they differ only in label and which fields are populated, so one spec
// and one constructor cover all of them.
type DocumentSpec struct {
	ProjectID   string
	Label       string
	FileUUID    string
	BusinessKey string
	Name        string
	Content     string
	Description string
	StartLine   int
	EndLine     int
}

func NewDocument(spec DocumentSpec) *Node {
	id := DocumentUUID(spec.FileUUID, spec.Label, spec.BusinessKey)
	n := NewNode(id, spec.Label)
	n.Set(PropProjectID, spec.ProjectID)
	n.Set(PropFileUUID, spec.FileUUID)
	n.Set(PropName, spec.Name)
	n.Set(PropContent, spec.Content)
	if spec.Description != "" {
		n.Set(PropDescription, spec.Description)
	}
	if spec.StartLine != 0 {
		n.Set(PropStartLine, spec.StartLine)
	}
	if spec.EndLine != 0 {
		n.Set(PropEndLine, spec.EndLine)
	}
	n.Set(PropState, string(NodeDiscovered))
	return n
}

// NewEntity builds an extracted named-entity node (§3.1, §6.1 extract/batch
// results).
func NewEntity(projectID, entityType, name string, confidence float64) *Node {
	normalized := NormalizeEntityName(name)
	n := NewNode(EntityUUID(entityType, normalized), "Entity")
	n.Set(PropProjectID, projectID)
	n.Set(PropName, name)
	n.Set(PropContent, name)
	n.Set(PropDescription, entityType)
	n.Set(PropEntityType, entityType)
	n.Set(PropConfidence, confidence)
	n.Set(PropState, string(NodeDiscovered))
	return n
}

// NewEmbeddingChunk builds a chunk child of a content-bearing node (§3.1).
type ChunkSpec struct {
	ProjectID   string
	ParentUUID  string
	ParentLabel string
	Index       int
	Content     string
	StartChar   int
	EndChar     int
	StartLine   int
	EndLine     int
	PageNum     *int
}

func NewEmbeddingChunk(spec ChunkSpec) *Node {
	n := NewNode(ChunkUUID(spec.ParentUUID, spec.Index), "EmbeddingChunk")
	n.Set(PropProjectID, spec.ProjectID)
	n.Set(PropChunkParentUUID, spec.ParentUUID)
	n.Set(PropParentLabel, spec.ParentLabel)
	n.Set(PropChunkIndex, spec.Index)
	n.Set(PropContent, spec.Content)
	n.Set(PropStartChar, spec.StartChar)
	n.Set(PropEndChar, spec.EndChar)
	n.Set(PropStartLine, spec.StartLine)
	n.Set(PropEndLine, spec.EndLine)
	if spec.PageNum != nil {
		n.Set(PropPageNum, *spec.PageNum)
	}
	return n
}
