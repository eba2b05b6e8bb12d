// Package diagnostic - user-facing error taxonomy and diagnostic payloads.
//
// What: A closed set of error kinds (Conflict, CatalogConflict, Coercion,
// NotFound, DeletedInOverlay, Invariant, Timeout, Cancelled, Disconnected,
// IO, Parse, Plan)
// plus a Diagnostic struct that carries the fields a client needs to render
// a useful message: code, message, an optional source fragment, a label, a
// help string, freeform notes, and an optional wrapped cause.
// How: Diagnostic implements the standard `error` interface and `Unwrap`,
// so callers keep using errors.Is/errors.As the way the rest of the module
// does. Kind-specific constructors attach the right code and keep call
// sites terse.
// Why: The storage/txn/flow layers need to distinguish retryable conditions
// (Conflict, Timeout) from fatal ones (Invariant) without callers parsing
// message strings.
package diagnostic

import (
	"errors"
	"fmt"
)

// Kind classifies a Diagnostic for programmatic handling.
type Kind string

const (
	KindConflict         Kind = "conflict"
	KindCatalogConflict  Kind = "catalog_conflict"
	KindCoercion         Kind = "coercion"
	KindNotFound         Kind = "not_found"
	KindDeletedInOverlay Kind = "deleted_in_overlay"
	KindInvariant        Kind = "invariant"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindDisconnected     Kind = "disconnected"
	KindIO               Kind = "io"
	KindParse            Kind = "parse"
	KindPlan             Kind = "plan"
)

// Fragment points back into user-supplied source text.
type Fragment struct {
	Text   string `json:"text"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Sub returns a Fragment covering a sub-range of f's text, used when the
// compiler substitutes an expression fragment into a parent statement
// fragment. offset/length are byte offsets into f.Text.
func (f Fragment) Sub(offset, length int) Fragment {
	if offset < 0 || offset+length > len(f.Text) {
		return f
	}
	return Fragment{Text: f.Text[offset : offset+length], Line: f.Line, Column: f.Column + offset}
}

// Diagnostic is the structured, user-facing error payload described in
// spec §6/§7. It wraps an optional cause so errors.Is/errors.As keep
// working through it.
type Diagnostic struct {
	Code     string     `json:"code"`
	Kind     Kind       `json:"kind"`
	Message  string     `json:"message"`
	Fragment *Fragment  `json:"fragment,omitempty"`
	Label    string     `json:"label,omitempty"`
	Help     string     `json:"help,omitempty"`
	Notes    []string   `json:"notes,omitempty"`
	Cause    error      `json:"-"`
}

func (d *Diagnostic) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", d.Code, d.Message, d.Cause)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

// WithFragment attaches a source fragment and returns d for chaining.
func (d *Diagnostic) WithFragment(f Fragment) *Diagnostic {
	d.Fragment = &f
	return d
}

// WithNote appends a freeform note.
func (d *Diagnostic) WithNote(note string) *Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

func new_(kind Kind, code, msg string, cause error) *Diagnostic {
	return &Diagnostic{Code: code, Kind: kind, Message: msg, Cause: cause}
}

// Conflict reports a transaction read/write conflict; the caller may retry.
func Conflict(msg string) *Diagnostic { return new_(KindConflict, "TXN_CONFLICT", msg, nil) }

// CatalogConflict reports a name collision or an operation on a name that
// was deleted-then-updated within the same overlay.
func CatalogConflict(msg string) *Diagnostic {
	return new_(KindCatalogConflict, "CATALOG_CONFLICT", msg, nil)
}

// Coercion reports a value that cannot be converted to a target column type.
func Coercion(msg, sourceType, targetType string, fragment Fragment) *Diagnostic {
	d := new_(KindCoercion, "COERCION", msg, nil)
	d.Fragment = &fragment
	d.Notes = []string{"source type: " + sourceType, "target type: " + targetType}
	return d
}

// NotFound reports an unresolved name or id, distinguished from a
// deleted-in-overlay entity (see DeletedInOverlay).
func NotFound(msg string) *Diagnostic { return new_(KindNotFound, "NOT_FOUND", msg, nil) }

// DeletedInOverlay reports a name or id that resolves to an entity dropped
// within the current transaction's overlay, as opposed to one that never
// existed (NotFound). Callers distinguish the two via Is(err, KindNotFound)
// vs. Is(err, KindDeletedInOverlay).
func DeletedInOverlay(msg string) *Diagnostic {
	return new_(KindDeletedInOverlay, "DELETED_IN_OVERLAY", msg, nil)
}

// Invariant reports an internal invariant violation. Fatal to the
// transaction that observed it.
func Invariant(msg string) *Diagnostic { return new_(KindInvariant, "INVARIANT", msg, nil) }

// Timeout reports a deadline exceeded while waiting on a watermark, queue,
// or backend I/O.
func Timeout(msg string) *Diagnostic { return new_(KindTimeout, "TIMEOUT", msg, nil) }

// Cancelled reports caller-initiated cancellation, distinct from Timeout.
func Cancelled(msg string) *Diagnostic { return new_(KindCancelled, "CANCELLED", msg, nil) }

// Disconnected reports a channel/queue that has been torn down.
func Disconnected(msg string) *Diagnostic { return new_(KindDisconnected, "DISCONNECTED", msg, nil) }

// IO reports a backend I/O failure, naming the backend kind and key range.
func IO(backendKind, keyRange string, cause error) *Diagnostic {
	d := new_(KindIO, "IO", fmt.Sprintf("%s backend failed for range %s", backendKind, keyRange), cause)
	return d
}

// Parse wraps a parse-time diagnostic from an external collaborator
// (the RQL parser), passed through unchanged except for re-tagging.
func Parse(msg string, fragment Fragment, cause error) *Diagnostic {
	d := new_(KindParse, "PARSE", msg, cause)
	d.Fragment = &fragment
	return d
}

// Plan wraps a plan-time diagnostic from the query planner.
func Plan(msg string, cause error) *Diagnostic { return new_(KindPlan, "PLAN", msg, cause) }

// Is reports whether err is a Diagnostic of the given kind, unwrapping
// through the standard chain.
func Is(err error, kind Kind) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Kind == kind
	}
	return false
}
