package types

import "strings"

// ChildDescriptor is one task produced by the decomposition service.
type ChildDescriptor struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate returns ErrInvalidTitle if the descriptor has no usable title.
func (d ChildDescriptor) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrInvalidTitle
	}
	return nil
}

// Normalize trims surrounding whitespace from both fields.
func (d ChildDescriptor) Normalize() ChildDescriptor {
	return ChildDescriptor{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
	}
}
