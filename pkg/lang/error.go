package lang

import "fmt"

type EmptyRelationNameError struct{}

func (e *EmptyRelationNameError) Error() string {
	return "relation name must not be empty"
}

// ConstructionError reports a malformed rule, e.g. `head <= ()`.
type ConstructionError struct {
	Head   string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("cannot construct rule with head %s: %s", e.Head, e.Reason)
}

type DuplicateMetadataError struct {
	Target string
}

func (e *DuplicateMetadataError) Error() string {
	return fmt.Sprintf("metadata already attached to %s; use ReplaceMetadata to overwrite", e.Target)
}

type UnknownMetadataOptionError struct {
	Option string
}

func (e *UnknownMetadataOptionError) Error() string {
	return fmt.Sprintf("unknown metadata option: %s", e.Option)
}

type InvalidMetadataValueError struct {
	Option string
	Value  interface{}
}

func (e *InvalidMetadataValueError) Error() string {
	return fmt.Sprintf("invalid value for metadata option %s: %v", e.Option, e.Value)
}

type NotInitializedError struct {
	Operation string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("%s: context is not initialized", e.Operation)
}

type InvalidConstantError struct {
	Value  interface{}
	Reason string
}

func (e *InvalidConstantError) Error() string {
	return fmt.Sprintf("invalid constant %q: %s", fmt.Sprint(e.Value), e.Reason)
}
