package weberr

import "net/http"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestError marks an error as the caller's fault or as expected, so
// the Errors middleware renders it instead of hiding it behind a 500.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	opts = append(opts, WithResponse(&ErrorResponse{Error: msg}, status))
	return Wrap(&RequestError{Err: err}, opts...)
}

// Constructor builds a RequestError with a fixed public message.
type Constructor func(err error, opts ...Opt) error

func withStatus(msg string, status int) Constructor {
	return func(err error, opts ...Opt) error {
		return NewError(err, msg, status, opts...)
	}
}

var (
	BadRequest      = withStatus("bad request", http.StatusBadRequest)
	NotAuthorized   = withStatus("not authorized to access resource", http.StatusUnauthorized)
	Forbidden       = withStatus("not allowed to modify resource", http.StatusForbidden)
	NotFound        = withStatus("the resource could not be found", http.StatusNotFound)
	Conflict        = withStatus("the resource was modified concurrently or conflicts with its current state", http.StatusConflict)
	TooManyRequests = withStatus("rate limit exceeded", http.StatusTooManyRequests)
	InternalError   = withStatus("the server encountered a problem and could not process your request", http.StatusInternalServerError)
	Unavailable     = withStatus("the server is busy, retry the request later", http.StatusServiceUnavailable)
)
