// internal/starbus/errors.go
package starbus

import "fmt"

// ErrorKind classifies a starbus failure so the HTTP layer can map it to a
// status code without string-sniffing the message.
type ErrorKind string

const (
	KindBadRequest       ErrorKind = "bad_request"
	KindTypeMismatch     ErrorKind = "type_mismatch"
	KindStorageFailure   ErrorKind = "storage_failure"
	KindFilesystemFailure ErrorKind = "filesystem_failure"
	KindNotFound         ErrorKind = "not_found"
)

// Error is the typed error returned by state-machine and store operations.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func badRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func typeMismatch(format string, args ...interface{}) *Error {
	return &Error{Kind: KindTypeMismatch, Msg: fmt.Sprintf(format, args...)}
}

func storageFailure(format string, args ...interface{}) *Error {
	return &Error{Kind: KindStorageFailure, Msg: fmt.Sprintf(format, args...)}
}

func filesystemFailure(format string, args ...interface{}) *Error {
	return &Error{Kind: KindFilesystemFailure, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}
