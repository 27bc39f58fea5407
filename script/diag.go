package script

import (
	"errors"
	"fmt"
	"strings"
)

// Severity grades a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code classifies diagnostics that callers treat specially
type Code string

// CodeSequence marks a breakpoint validation failure. On first load it
// degrades only the owning node.
const CodeSequence Code = "sequence"

// Diagnostic is a problem tied to a node, reported to the operator
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Node     string   `json:"node,omitempty"`
	Reason   string   `json:"reason"`
	Code     Code     `json:"code,omitempty"`
}

func (d Diagnostic) Error() string {
	if d.Node == "" {
		return d.Reason
	}
	return fmt.Sprintf("%s: %s", d.Node, d.Reason)
}

// Errorf builds an error diagnostic for node
func Errorf(node, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Node: node, Reason: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning diagnostic for node
func Warnf(node, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Node: node, Reason: fmt.Sprintf(format, args...)}
}

// LoadError is returned when a document cannot become a graph
type LoadError struct {
	Diagnostics []Diagnostic
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.Error()
	}
	return "script: " + strings.Join(msgs, "; ")
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		errs[i] = d
	}
	return errs
}

// Errors keeps only error-severity diagnostics
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// AsLoadError extracts the diagnostics from err, if it carries any
func AsLoadError(err error) ([]Diagnostic, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Diagnostics, true
	}
	return nil, false
}
