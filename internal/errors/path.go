package errors

import (
	"fmt"
	"strings"
)

// PathTraversalError is returned when a user-supplied icon directory
// resolves outside the project root. It is never recovered from.
type PathTraversalError struct {
	Input    string
	Resolved string
	Root     string
}

// Error implements the error interface.
func (e *PathTraversalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "icon directory %q resolves outside the project root\n", e.Input)
	fmt.Fprintf(&b, "  resolved path: %s\n", e.Resolved)
	fmt.Fprintf(&b, "  project root:  %s\n", e.Root)
	b.WriteString("The icon directory must live inside the project. Valid examples:\n")
	b.WriteString("  sprite.icon_dir: src/icons\n")
	b.WriteString("  sprite.icon_dir: assets/svg\n")
	b.WriteString("  sprite.icon_dir: ./public/icons")
	return b.String()
}

// Is lets errors.Is match any PathTraversalError.
func (e *PathTraversalError) Is(target error) bool {
	_, ok := target.(*PathTraversalError)
	return ok
}

// Code returns the stable error code.
func (e *PathTraversalError) Code() string {
	return ErrCodePathTraversal
}
