package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrRequestBuild is returned when a query cannot be turned into a
	// source request (unresolvable or inverted bounds, unknown columns).
	ErrRequestBuild = errors.New("request build error")
	// ErrTransport is returned when the remote stream cannot be opened or
	// breaks mid-read.
	ErrTransport = errors.New("transport error")
	// ErrRecordValidation is returned when a record field fails to parse,
	// is missing at emission time, or names the wrong variable.
	ErrRecordValidation = errors.New("record validation error")
	// ErrUnexpectedStructure is returned when the response envelope is
	// malformed or ends before its closing marker.
	ErrUnexpectedStructure = errors.New("unexpected structure")
)

// ParseError locates a record or structure failure in the source response.
type ParseError struct {
	Kind error
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("data source error on xml line #%d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Kind }

func recordError(line int, format string, args ...any) error {
	return &ParseError{Kind: ErrRecordValidation, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func structureError(line int, format string, args ...any) error {
	return &ParseError{Kind: ErrUnexpectedStructure, Line: line, Msg: fmt.Sprintf(format, args...)}
}
