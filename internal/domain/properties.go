package domain

// Property keys persisted on graph nodes. Every lifecycle field lives as a
// plain property (§6.5: "No external journal is required; the graph store
// is the single source of truth").
const (
	PropUUID        = "uuid"
	PropProjectID   = "projectId"
	PropName        = "_name"
	PropContent     = "_content"
	PropDescription = "_description"

	PropState          = "_state"
	PropStateChangedAt = "_stateChangedAt"
	PropErrorType      = "errorType"
	PropErrorMessage   = "errorMessage"
	PropRetryCount     = "retryCount"

	PropRawContentHash      = "_rawContentHash"
	PropContentHash         = "_contentHash"
	PropEntitiesContentHash = "_entitiesContentHash"

	PropRawContent  = "_rawContent"
	PropIsVirtual   = "isVirtual"
	PropRelPath     = "relativePath"
	PropAbsPath     = "absolutePath"
	PropFileName    = "name"
	PropExtension   = "extension"
	PropDirectory   = "directory"

	PropDirPath     = "path"
	PropDirDepth    = "depth"

	PropProjectName = "name"
	PropRootPath    = "rootPath"
	PropCreatedAt   = "createdAt"

	PropStartLine  = "startLine"
	PropEndLine    = "endLine"
	PropScopeType  = "type"
	PropLanguage   = "language"
	PropParentUUID = "parentUUID"
	PropFileUUID   = "fileUUID"
	PropHeritage   = "heritage"
	PropDecorators = "decorators"
	PropParameters = "parameters"
	PropReturnType = "returnType"

	PropEntityType  = "entityType"
	PropConfidence  = "confidence"

	PropUsesChunks = "usesChunks"
	PropChunkCount = "chunkCount"

	PropParentLabel = "parentLabel"
	PropChunkParentUUID = "parentUuid"
	PropChunkIndex  = "chunkIndex"
	PropStartChar   = "startChar"
	PropEndChar     = "endChar"
	PropPageNum     = "pageNum"

	PropEmbeddingProvider = "embedding_provider"
	PropEmbeddingModel    = "embedding_model"
	PropEmbeddingGenAt    = "embedding_generated_at"
)

// EmbeddingVectorProp and EmbeddingHashProp return the per-view property
// names, e.g. "embedding_content" / "embedding_content_hash".
func EmbeddingVectorProp(view string) string { return "embedding_" + view }
func EmbeddingHashProp(view string) string   { return "embedding_" + view + "_hash" }
