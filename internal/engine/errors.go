package engine

import "fmt"

// NotFoundError reports a referenced record that does not exist, is not owned
// by the caller, or is not in the state the operation needs.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError reports a precondition lost to another operation.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// ValidationError reports malformed input. It is returned before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
