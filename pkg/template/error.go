package template

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vilterp/nltemplate/pkg/lang"
)

type TemplateFrozenError struct {
	TemplateID string
}

func (e *TemplateFrozenError) Error() string {
	return fmt.Sprintf("template %s is frozen: it was handed to the engine", e.TemplateID)
}

type NoSuchTemplateError struct {
	TemplateID string
}

func (e *NoSuchTemplateError) Error() string {
	return fmt.Sprintf("no such template: %s", e.TemplateID)
}

// ErrorKind names the construction error class, for metric labels.
func ErrorKind(err error) string {
	var (
		frozen    *TemplateFrozenError
		duplicate *lang.DuplicateMetadataError
		construct *lang.ConstructionError
		unknown   *lang.UnknownMetadataOptionError
	)
	switch {
	case errors.As(err, &frozen):
		return "template_frozen"
	case errors.As(err, &duplicate):
		return "duplicate_metadata"
	case errors.As(err, &construct):
		return "construction"
	case errors.As(err, &unknown):
		return "unknown_metadata_option"
	}
	return "other"
}
