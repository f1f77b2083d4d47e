package evalerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies evaluation errors for the Error transition branch.
type Kind int

const (
	// KindNone means no error was recorded.
	KindNone Kind = iota
	// KindOpaque is any failure without query metadata.
	KindOpaque
	// KindQuery is a failure tagged with a failing expression reference.
	KindQuery
)

// String returns kind name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOpaque:
		return "opaque"
	case KindQuery:
		return "query"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// QueryError marks evaluation failures raised by one expression query.
// Params: failing expression reference and wrapped cause.
// Returns: typed query failure recognized by AsQuery.
type QueryError struct {
	RefID string
	Err   error
}

// Error returns query failure message including reference.
// Params: none.
// Returns: string representation.
func (e QueryError) Error() string {
	return fmt.Sprintf("failed to execute query %s: %s", e.RefID, e.Err)
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
func (e QueryError) Unwrap() error {
	return e.Err
}

// Query wraps error with query reference marker.
// Params: expression reference and source error.
// Returns: wrapped error or nil.
func Query(refID string, err error) error {
	if err == nil {
		return nil
	}
	return QueryError{RefID: refID, Err: err}
}

// AsQuery extracts query failure metadata from error chain.
// Params: candidate error; chain is not modified.
// Returns: query error and true when a QueryError is present in chain.
func AsQuery(err error) (QueryError, bool) {
	if err == nil {
		return QueryError{}, false
	}
	var queryErr QueryError
	if errors.As(err, &queryErr) {
		return queryErr, true
	}
	var queryErrPtr *QueryError
	if errors.As(err, &queryErrPtr) && queryErrPtr != nil {
		return *queryErrPtr, true
	}
	return QueryError{}, false
}

// Classify reports error kind.
// Params: candidate error.
// Returns: KindNone for nil, KindQuery for query failures, KindOpaque otherwise.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if _, ok := AsQuery(err); ok {
		return KindQuery
	}
	return KindOpaque
}

// Decode rebuilds evaluation error from its transport form.
// Params: message text and optional expression reference.
// Returns: nil for empty message, QueryError when refID is set, plain error otherwise.
func Decode(message, refID string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	cause := errors.New(message)
	if strings.TrimSpace(refID) == "" {
		return cause
	}
	return QueryError{RefID: strings.TrimSpace(refID), Err: cause}
}

// Encode splits evaluation error into transport form.
// Params: error to encode.
// Returns: root message and reference (empty for opaque errors).
func Encode(err error) (message, refID string) {
	if err == nil {
		return "", ""
	}
	if queryErr, ok := AsQuery(err); ok {
		if queryErr.Err != nil {
			return queryErr.Err.Error(), queryErr.RefID
		}
		return "", queryErr.RefID
	}
	return err.Error(), ""
}
