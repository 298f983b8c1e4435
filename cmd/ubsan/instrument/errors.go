// Package instrument - Custom error types for instrumentation.
//
// Errors include file position (file:line:column) and, where useful, a
// suggestion for resolving the issue.
//
// Example output:
//
//	main.go:42:15: column number out of range
package instrument

import (
	"fmt"
	"go/token"
)

// InstrumentationError represents an error during instrumentation with
// source position context.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InstrumentationError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message. A non-empty Suggestion is appended
// on its own line.
func (e *InstrumentationError) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewInstrumentationError creates an error with file position extracted
// from an AST position via the FileSet.
func NewInstrumentationError(fset *token.FileSet, pos token.Pos, msg string) *InstrumentationError {
	position := fset.Position(pos)
	return &InstrumentationError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewInstrumentationErrorWithSuggestion creates an error with an
// actionable hint attached.
func NewInstrumentationErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *InstrumentationError {
	err := NewInstrumentationError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}
