package domain

// Relationship types from spec.md §3.2.
const (
	EdgeBelongsTo        = "BELONGS_TO"
	EdgeDefinedIn         = "DEFINED_IN"
	EdgeInDirectory        = "IN_DIRECTORY"
	EdgeParentOf          = "PARENT_OF"
	EdgeHasParent          = "HAS_PARENT"
	EdgeHasSection         = "HAS_SECTION"
	EdgeChildOf            = "CHILD_OF"
	EdgeContainsCode       = "CONTAINS_CODE"
	EdgeHasEmbeddingChunk  = "HAS_EMBEDDING_CHUNK"
	EdgeConsumes           = "CONSUMES"
	EdgePendingImport      = "PENDING_IMPORT"
	EdgeInheritsFrom       = "INHERITS_FROM"
	EdgeImplements         = "IMPLEMENTS"
	EdgeDecoratedBy        = "DECORATED_BY"
	EdgeUsesLibrary        = "USES_LIBRARY"
	EdgeImports            = "IMPORTS"
	EdgeReferences         = "REFERENCES"
	EdgeLinksTo            = "LINKS_TO"
	EdgeReferencesImage    = "REFERENCES_IMAGE"
	EdgeMentions           = "MENTIONS"
	EdgeRelatedTo          = "RELATED_TO"
)

// PENDING_IMPORT edge properties.
const (
	PendingSymbolName   = "symbol"
	PendingSourceModule = "sourceModule"
	PendingFromUUID     = "fromUUID"
)

// MENTIONS / RELATED_TO edge properties.
const (
	MentionConfidence = "confidence"
	RelatedPredicate  = "predicate"
	RelatedConfidence = "confidence"
)
