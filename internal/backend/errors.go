package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the normalized failure taxonomy for backend calls. Orchestration
// code branches on Kind, never on backend message text.
type Kind string

const (
	// KindFunctionNotFound indicates the RPC name is not deployed on this
	// backend (schema drift between portal and backend releases).
	KindFunctionNotFound Kind = "function_not_found"

	// KindForeignKeyViolation indicates a referenced row is not visible yet.
	// For freshly created identities this is replication lag, not corruption.
	KindForeignKeyViolation Kind = "foreign_key_violation"

	// KindUniqueViolation indicates a duplicate row insert.
	KindUniqueViolation Kind = "unique_violation"

	// KindDuplicateUser indicates the identity API rejected a signup because
	// the email is already registered.
	KindDuplicateUser Kind = "duplicate_user"

	// KindUnavailable indicates the backend could not be reached or answered
	// with a server-side failure.
	KindUnavailable Kind = "unavailable"

	// KindInternal indicates an unclassified backend error.
	KindInternal Kind = "internal"
)

// Error wraps a backend failure with a machine-checkable kind. Code carries
// the raw PostgREST or SQLSTATE code when the backend reported one.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend [%s/%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("backend [%s]: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind from an error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// IsFunctionNotFound reports whether the RPC name could not be resolved.
func IsFunctionNotFound(err error) bool {
	return KindOf(err) == KindFunctionNotFound
}

// IsForeignKeyViolation reports whether a referenced row was not visible.
func IsForeignKeyViolation(err error) bool {
	return KindOf(err) == KindForeignKeyViolation
}

// IsUniqueViolation reports whether a unique constraint was hit.
func IsUniqueViolation(err error) bool {
	return KindOf(err) == KindUniqueViolation
}

// IsDuplicateUser reports whether a signup failed on an existing email.
func IsDuplicateUser(err error) bool {
	return KindOf(err) == KindDuplicateUser
}

// PostgREST and SQLSTATE codes the classifier understands.
const (
	codeFunctionNotFoundREST = "PGRST202" // function missing from schema cache
	codeUndefinedFunction    = "42883"
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
)

// classifyRPC maps a PostgREST error response onto a Kind. Codes are
// authoritative; message substrings are a last resort for backend versions
// that predate stable error codes.
func classifyRPC(status int, code, message string) Kind {
	switch code {
	case codeFunctionNotFoundREST, codeUndefinedFunction:
		return KindFunctionNotFound
	case codeForeignKeyViolation:
		return KindForeignKeyViolation
	case codeUniqueViolation:
		return KindUniqueViolation
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "could not find the function"):
		return KindFunctionNotFound
	case strings.Contains(lower, "is not present in table"),
		strings.Contains(lower, "does not exist"):
		return KindForeignKeyViolation
	}

	if status >= 500 {
		return KindUnavailable
	}
	return KindInternal
}

// classifySignup maps an identity API error response onto a Kind.
func classifySignup(status int, errorCode, message string) Kind {
	if errorCode == "user_already_exists" ||
		strings.Contains(strings.ToLower(message), "user already registered") {
		return KindDuplicateUser
	}
	if status >= 500 {
		return KindUnavailable
	}
	return KindInternal
}
