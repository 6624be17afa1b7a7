package core

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below unwrap to one of these so callers can use errors.Is.
var (
	// ErrCatalogInconsistency marks an authoring-time contradiction in the catalog.
	ErrCatalogInconsistency = errors.New("catalog inconsistency")
	// ErrUnknownReference marks an id absent from the loaded catalog.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrInvalidSelection marks a rejected selection attempt.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrInvalidTransition marks an operation not allowed in the current session state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionClosed marks a mutation on a committed or abandoned session.
	ErrSessionClosed = errors.New("session closed")
	// ErrAllocation marks a failure of the code allocation collaborator.
	ErrAllocation = errors.New("code allocation failed")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// CatalogInconsistencyError describes a contradiction found while building the graph.
type CatalogInconsistencyError struct {
	Reason       string
	DependencyID DependencyID
	ParameterID  ParameterID
}

func (e *CatalogInconsistencyError) Error() string {
	if e.DependencyID != 0 {
		return fmt.Sprintf("catalog inconsistency: dependency %d: %s", e.DependencyID, e.Reason)
	}
	if e.ParameterID != 0 {
		return fmt.Sprintf("catalog inconsistency: parameter %d: %s", e.ParameterID, e.Reason)
	}
	return "catalog inconsistency: " + e.Reason
}

func (e *CatalogInconsistencyError) Unwrap() error { return ErrCatalogInconsistency }

// ReferenceKind names what an UnknownReferenceError points at.
type ReferenceKind string

// Reference kinds.
const (
	RefParameter  ReferenceKind = "parameter"
	RefOption     ReferenceKind = "option"
	RefDependency ReferenceKind = "dependency"
)

// UnknownReferenceError is a recoverable reference to an id absent from the catalog.
type UnknownReferenceError struct {
	Kind ReferenceKind
	ID   int64
	// Context says where the reference was found, e.g. "dependency 4 parent option".
	Context string
}

func (e *UnknownReferenceError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("unknown %s %d (%s)", e.Kind, e.ID, e.Context)
	}
	return fmt.Sprintf("unknown %s %d", e.Kind, e.ID)
}

func (e *UnknownReferenceError) Unwrap() error { return ErrUnknownReference }

// InvalidSelectionError is returned when a caller picks a disallowed option.
type InvalidSelectionError struct {
	Slug     string
	OptionID OptionID
	Reason   string
}

func (e *InvalidSelectionError) Error() string {
	if e.OptionID != 0 {
		return fmt.Sprintf("invalid selection %s=%d: %s", e.Slug, e.OptionID, e.Reason)
	}
	return fmt.Sprintf("invalid selection %s: %s", e.Slug, e.Reason)
}

func (e *InvalidSelectionError) Unwrap() error { return ErrInvalidSelection }

// AllocationError wraps a failure reported by the Allocator.
type AllocationError struct {
	TemplateID TemplateID
	Cause      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("code allocation failed for template %d: %v", e.TemplateID, e.Cause)
}

// Is matches ErrAllocation.
func (e *AllocationError) Is(target error) bool { return target == ErrAllocation }

func (e *AllocationError) Unwrap() error { return e.Cause }
