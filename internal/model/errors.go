package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures for callers.
type ErrorKind string

const (
	// ErrParse means the drawing is malformed or in an unsupported format.
	ErrParse ErrorKind = "ParseError"
	// ErrData means the inputs are structurally valid but unusable: missing or
	// non-numeric coordinate columns, an empty point set, no boundary polygons,
	// or invalid analysis parameters.
	ErrData ErrorKind = "DataError"
	// ErrSerialization means the annotated drawing could not be encoded.
	ErrSerialization ErrorKind = "SerializationError"
)

// Stage names the analysis step that produced an error.
type Stage string

const (
	StageLoad     Stage = "load"
	StageParse    Stage = "parse"
	StageJoin     Stage = "join"
	StageCluster  Stage = "cluster"
	StageClassify Stage = "classify"
	StageAnnotate Stage = "annotate"
)

// KindError tags an error with an ErrorKind without naming a stage. Leaf
// packages return these; the pipeline lifts them into StageErrors.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	return e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// NewKindError wraps err with the given kind.
func NewKindError(kind ErrorKind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

// ParseError wraps err as a ParseError.
func ParseError(err error) error { return NewKindError(ErrParse, err) }

// DataError wraps err as a DataError.
func DataError(err error) error { return NewKindError(ErrData, err) }

// SerializationError wraps err as a SerializationError.
func SerializationError(err error) error { return NewKindError(ErrSerialization, err) }

// StageError reports the failing stage and error kind of an analysis run.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err for stage. The kind is taken from the first KindError
// in err's chain and falls back to fallback.
func NewStageError(stage Stage, fallback ErrorKind, err error) *StageError {
	kind := KindOf(err)
	if kind == "" {
		kind = fallback
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf returns the ErrorKind carried anywhere in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
