package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies business failures so transports can map them.
type ErrorKind string

const (
	// KindValidation marks malformed input or a violated business rule on input.
	KindValidation ErrorKind = "VALIDATION"
	// KindNotFound marks a missing referenced record.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConflict marks an operation not allowed in the current state.
	KindConflict ErrorKind = "CONFLICT"
	// KindIntegrity marks a uniqueness or foreign-key violation raised by storage.
	KindIntegrity ErrorKind = "INTEGRITY"
)

// Sentinels usable with errors.Is regardless of message.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("integrity violation")
)

// Error carries a user-facing message plus its kind.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrIntegrity:
		return e.Kind == KindIntegrity
	}
	return false
}

// ValidationError builds a KindValidation error.
func ValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError builds a KindNotFound error for the given entity.
func NotFoundError(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// ConflictError builds a KindConflict error.
func ConflictError(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// IntegrityError wraps a storage error with a safe message.
func IntegrityError(message string, cause error) error {
	return &Error{Kind: KindIntegrity, Message: message, Err: cause}
}

// KindOf reports the kind of err, or "" when err is not a business error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage returns text that is safe to show to an operator.
// Unclassified errors collapse into a generic retryable message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if errors.Is(err, ErrIdempotencyConflict) {
		return "Request already processed"
	}
	return "Something went wrong, please try again"
}

// PostgreSQL error codes translated by TranslateDBError.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TranslateDBError turns constraint violations into IntegrityError values.
// Other errors pass through untouched.
func TranslateDBError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return IntegrityError(fmt.Sprintf("A record with the same %s already exists", constraintSubject(pgErr.ConstraintName)), err)
	case pgForeignKeyViolation:
		return IntegrityError("The record is referenced by or refers to data that does not exist", err)
	case pgCheckViolation:
		if strings.Contains(pgErr.ConstraintName, "stock") {
			return ConflictError("Insufficient stock")
		}
		return IntegrityError("The record violates a data rule", err)
	case pgSerializationFailure, pgDeadlockDetected:
		return &Error{Kind: KindConflict, Message: "The data was changed by another request, please retry", Err: err}
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func constraintSubject(constraint string) string {
	subject := strings.TrimSuffix(strings.TrimSuffix(constraint, "_key"), "_idx")
	if i := strings.Index(subject, "_"); i >= 0 {
		subject = subject[i+1:]
	}
	subject = strings.ReplaceAll(subject, "_", " ")
	if subject == "" {
		return "value"
	}
	return subject
}

// Result is the envelope returned by mutating endpoints.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// OK wraps data in a successful Result.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail builds a failed Result from err.
func Fail[T any](err error) Result[T] {
	return Result[T]{Error: UserMessage(err), Kind: string(KindOf(err))}
}
