package models

import (
	"errors"
	"fmt"
)

// ErrNoDocuments is returned when a question or summary is requested for a
// session with no uploaded documents. Checked before any external call.
var ErrNoDocuments = errors.New("no documents uploaded")

// ParseError reports an unreadable or corrupt source document.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.File, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding service failure. Index construction for
// the affected document is aborted, no partial state is committed.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError reports a language-model failure or an empty completion.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// SynthesisError reports a speech-synthesis failure. Callers treat it as
// non-fatal and degrade to a text-only response.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("speech synthesis: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// PerspectiveError reports a summary perspective outside the known set.
type PerspectiveError struct {
	Value string
}

func (e *PerspectiveError) Error() string {
	return fmt.Sprintf("unknown summary perspective %q", e.Value)
}
