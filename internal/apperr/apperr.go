// Package apperr classifies failures so the request layer can map them to
// responses without inspecting messages.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindInternal          Kind = "internal"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindStateConflict     Kind = "state_conflict"
	KindBusinessRule      Kind = "business_rule"
	KindInsufficientStock Kind = "insufficient_stock"
	KindUnavailable       Kind = "unavailable"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
)

// Error is a classified failure. Violations lists every problem found, not
// only the first; Details carries a structured payload such as a shortage
// list or the existing ticket id of a duplicate.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Expected   []string
	Actual     string
	Details    any
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Violations) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Violations, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(message string, violations ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Violations: violations}
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// StateConflict reports that an operation needed one of expected but found actual.
func StateConflict(entity, actual string, expected ...string) *Error {
	return &Error{
		Kind:     KindStateConflict,
		Message:  fmt.Sprintf("%s is %s, expected %s", entity, actual, strings.Join(expected, " or ")),
		Expected: expected,
		Actual:   actual,
	}
}

func BusinessRule(message string, violations ...string) *Error {
	return &Error{Kind: KindBusinessRule, Message: message, Violations: violations}
}

func InsufficientStock(message string, details any) *Error {
	return &Error{Kind: KindInsufficientStock, Message: message, Details: details}
}

func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "data store unavailable", Err: err}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// WithDetails attaches a structured payload and returns e.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnavailable for connectivity failures, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if IsUnavailable(err) {
		return KindUnavailable
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// FromStore translates a store error: missing rows become not-found for
// entity, connectivity failures become unavailable, anything else is
// wrapped with op.
func FromStore(err error, entity, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound(entity)
	}
	if IsUnavailable(err) {
		return Unavailable(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUnavailable reports whether err is a transient connectivity failure
// rather than a query or constraint error.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception; 57P01..03: admin shutdown / cannot connect now.
		return strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}
	return pgconn.SafeToRetry(err)
}

// IsUniqueViolation reports whether err is a unique-constraint violation,
// optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
