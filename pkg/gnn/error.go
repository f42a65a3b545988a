package gnn

import "fmt"

type InvalidChannelWidthError struct {
	Field string
	Width int
}

func (e *InvalidChannelWidthError) Error() string {
	return fmt.Sprintf("%s must be positive; got %d", e.Field, e.Width)
}

type AlreadyBuiltError struct {
	Kind   Kind
	Output string
}

func (e *AlreadyBuiltError) Error() string {
	return fmt.Sprintf("%s module already built into relation %s", e.Kind, e.Output)
}

type InvalidOptionError struct {
	Kind   Kind
	Option string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Kind, e.Option, e.Reason)
}

type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown module kind: %s", e.Kind)
}
