// Package errors defines the typed error kinds shared across the ingestion
// pipeline. Components attribute blame to one of these kinds rather than
// matching on ad-hoc string errors, so the processor can decide whether a
// failure is per-file (contained) or service-wide (degraded).
package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound                Kind = "NotFound"
	KindUnreadable              Kind = "Unreadable"
	KindParseFailure            Kind = "ParseFailure"
	KindRelationFailure         Kind = "RelationFailure"
	KindEntityServiceUnavailable Kind = "EntityServiceUnavailable"
	KindEntityTimeout            Kind = "EntityTimeout"
	KindEmbeddingTimeout         Kind = "EmbeddingTimeout"
	KindEmbeddingProviderMissing Kind = "EmbeddingProviderMissing"
	KindGraphTransient           Kind = "GraphTransient"
	KindInvalidTransition        Kind = "InvalidTransition"
)

// Typed wraps an underlying error with a Kind and, when the failure can be
// attributed to a single file, that file's uuid.
type Typed struct {
	Kind     Kind
	FileUUID string
	Err      error
}

func (e *Typed) Error() string {
	if e == nil {
		return ""
	}
	if e.FileUUID != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: file %s: %v", e.Kind, e.FileUUID, e.Err)
		}
		return fmt.Sprintf("%s: file %s", e.Kind, e.FileUUID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Typed) Unwrap() error { return e.Err }

func New(kind Kind, fileUUID string, err error) *Typed {
	return &Typed{Kind: kind, FileUUID: fileUUID, Err: err}
}

// Is lets callers test a Kind with errors.Is(err, errors.KindOf(KindNotFound)).
func (e *Typed) Is(target error) bool {
	var t *Typed
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf returns a sentinel comparable with errors.Is against any Typed
// error carrying the same Kind.
func KindOf(kind Kind) error {
	return &Typed{Kind: kind}
}

// Degraded marks a service-wide failure: the caller should log and skip the
// phase rather than attribute the error to any single file.
type Degraded struct {
	Kind Kind
	Err  error
}

func (e *Degraded) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (degraded): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (degraded)", e.Kind)
}

func (e *Degraded) Unwrap() error { return e.Err }

func NewDegraded(kind Kind, err error) *Degraded {
	return &Degraded{Kind: kind, Err: err}
}
