// Package errors defines the typed error taxonomy shared by every layer of
// the mapping core. Errors carry a Kind for programmatic handling, the
// property or entity type they concern, and an optional cause which is never
// swallowed or substituted.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a GraphError.
type Kind string

const (
	// Declaration and validation errors
	KindTypeValidation     Kind = "TYPE_VALIDATION"
	KindNoSuchProperty     Kind = "NO_SUCH_PROPERTY"
	KindPropertyNotIndexed Kind = "PROPERTY_NOT_INDEXED"
	KindAlreadyRegistered  Kind = "ALREADY_REGISTERED"
	KindUnknownType        Kind = "UNKNOWN_TYPE"

	// Lifecycle and lookup errors
	KindNotUnique       Kind = "NOT_UNIQUE"
	KindDoesNotExist    Kind = "DOES_NOT_EXIST"
	KindAmbiguousResult Kind = "AMBIGUOUS_RESULT"
	KindUnsavedNode     Kind = "UNSAVED_NODE"

	// Relationship errors
	KindNotConnected       Kind = "NOT_CONNECTED"
	KindTargetTypeMismatch Kind = "TARGET_TYPE_MISMATCH"

	// Infrastructure errors
	KindStore Kind = "STORE"
)

// GraphError is the error value returned by the mapping layer.
type GraphError struct {
	Kind       Kind
	Message    string
	EntityType string
	Property   string
	Cause      error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error.
func (e *GraphError) WithCause(err error) *GraphError {
	e.Cause = err
	return e
}

// Constructor functions for the taxonomy

// NewTypeValidation reports a value that failed a property descriptor's
// type check.
func NewTypeValidation(entityType, property, expected string, got interface{}) *GraphError {
	return &GraphError{
		Kind:       KindTypeValidation,
		Message:    fmt.Sprintf("property %q of %s expects %s, got %T (%v)", property, entityType, expected, got, got),
		EntityType: entityType,
		Property:   property,
	}
}

// NewRequiredProperty reports an absent value for a non-optional property.
func NewRequiredProperty(entityType, property, expected string) *GraphError {
	return &GraphError{
		Kind:       KindTypeValidation,
		Message:    fmt.Sprintf("property %q of %s is required and expects %s", property, entityType, expected),
		EntityType: entityType,
		Property:   property,
	}
}

// NewNoSuchProperty reports a query referencing an undeclared property.
func NewNoSuchProperty(entityType, property string) *GraphError {
	return &GraphError{
		Kind:       KindNoSuchProperty,
		Message:    fmt.Sprintf("%q is not a declared property of %s", property, entityType),
		EntityType: entityType,
		Property:   property,
	}
}

// NewPropertyNotIndexed reports a query filtering on a declared but
// unindexed property.
func NewPropertyNotIndexed(entityType, property string) *GraphError {
	return &GraphError{
		Kind:       KindPropertyNotIndexed,
		Message:    fmt.Sprintf("property %q of %s is not indexed", property, entityType),
		EntityType: entityType,
		Property:   property,
	}
}

// NewNotUnique reports a uniqueness conflict detected by a conditional
// index write, naming the offending property.
func NewNotUnique(entityType, property string) *GraphError {
	return &GraphError{
		Kind:       KindNotUnique,
		Message:    fmt.Sprintf("value for unique property %q of %s is already indexed for another node", property, entityType),
		EntityType: entityType,
		Property:   property,
	}
}

// NewDoesNotExist reports zero matches where exactly one was expected.
func NewDoesNotExist(entityType string) *GraphError {
	return &GraphError{
		Kind:       KindDoesNotExist,
		Message:    fmt.Sprintf("no %s matches the given arguments", entityType),
		EntityType: entityType,
	}
}

// NewAmbiguousResult reports more than one match where exactly one was
// expected.
func NewAmbiguousResult(entityType string, count int) *GraphError {
	return &GraphError{
		Kind:       KindAmbiguousResult,
		Message:    fmt.Sprintf("%d %s nodes match where exactly one was expected", count, entityType),
		EntityType: entityType,
	}
}

// NewUnsavedNode reports an operation that requires a persisted node being
// attempted on an instance without one.
func NewUnsavedNode(entityType, operation string) *GraphError {
	return &GraphError{
		Kind:       KindUnsavedNode,
		Message:    fmt.Sprintf("cannot %s unsaved %s instance", operation, entityType),
		EntityType: entityType,
	}
}

// NewNotConnected reports a reconnect attempted where no relationship
// exists between the two nodes.
func NewNotConnected(attribute string) *GraphError {
	return &GraphError{
		Kind:    KindNotConnected,
		Message: fmt.Sprintf("nodes are not connected via %q", attribute),
	}
}

// NewTargetTypeMismatch reports a relationship target whose type is not in
// the definition's target map.
func NewTargetTypeMismatch(attribute, got string, allowed []string) *GraphError {
	return &GraphError{
		Kind:       KindTargetTypeMismatch,
		Message:    fmt.Sprintf("relationship %q expects target of type %s, got %s", attribute, strings.Join(allowed, " or "), got),
		EntityType: got,
	}
}

// NewAlreadyRegistered reports a duplicate type registration.
func NewAlreadyRegistered(name string) *GraphError {
	return &GraphError{
		Kind:       KindAlreadyRegistered,
		Message:    fmt.Sprintf("type %q is already registered", name),
		EntityType: name,
	}
}

// NewUnknownType reports a forward-declared type name that never resolved.
func NewUnknownType(name string) *GraphError {
	return &GraphError{
		Kind:       KindUnknownType,
		Message:    fmt.Sprintf("type %q is not registered", name),
		EntityType: name,
	}
}

// NewStore wraps a failure reported by the store client.
func NewStore(operation string, err error) *GraphError {
	return &GraphError{
		Kind:    KindStore,
		Message: fmt.Sprintf("store operation %q failed", operation),
		Cause:   err,
	}
}

// Helper functions

// Get extracts a GraphError from an error chain, or nil.
func Get(err error) *GraphError {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge
	}
	return nil
}

// IsKind reports whether err carries a GraphError of the given kind.
func IsKind(err error, kind Kind) bool {
	ge := Get(err)
	return ge != nil && ge.Kind == kind
}

// IsTypeValidation reports a descriptor type-check failure.
func IsTypeValidation(err error) bool { return IsKind(err, KindTypeValidation) }

// IsNoSuchProperty reports a filter on an undeclared property.
func IsNoSuchProperty(err error) bool { return IsKind(err, KindNoSuchProperty) }

// IsPropertyNotIndexed reports a filter on an unindexed property.
func IsPropertyNotIndexed(err error) bool { return IsKind(err, KindPropertyNotIndexed) }

// IsNotUnique reports a uniqueness conflict.
func IsNotUnique(err error) bool { return IsKind(err, KindNotUnique) }

// IsDoesNotExist reports a missing expected match.
func IsDoesNotExist(err error) bool { return IsKind(err, KindDoesNotExist) }

// IsAmbiguousResult reports multiple matches where one was expected.
func IsAmbiguousResult(err error) bool { return IsKind(err, KindAmbiguousResult) }

// IsUnsavedNode reports an operation on an unsaved instance.
func IsUnsavedNode(err error) bool { return IsKind(err, KindUnsavedNode) }

// IsNotConnected reports a reconnect without an existing relationship.
func IsNotConnected(err error) bool { return IsKind(err, KindNotConnected) }

// IsTargetTypeMismatch reports a disallowed relationship target type.
func IsTargetTypeMismatch(err error) bool { return IsKind(err, KindTargetTypeMismatch) }

// IsStore reports a wrapped store failure.
func IsStore(err error) bool { return IsKind(err, KindStore) }

// Wrap adds context to an error, preserving an existing GraphError's kind
// and cause chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if ge := Get(err); ge != nil {
		ge.Message = fmt.Sprintf("%s: %s", message, ge.Message)
		return ge
	}
	return &GraphError{Kind: KindStore, Message: message, Cause: err}
}
