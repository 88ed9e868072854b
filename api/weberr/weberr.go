// Package weberr decorates errors with the HTTP response they should
// produce and with extra log fields. Decorations survive wrapping with
// fmt.Errorf("...: %w").
package weberr

import "errors"

type Opt func(error) error

func Wrap(err error, opts ...Opt) error {
	for _, opt := range opts {
		err = opt(err)
	}
	return err
}

func WithResponse(body interface{}, status int) Opt {
	return func(err error) error {
		return &responseError{error: err, body: body, status: status}
	}
}

func WithFields(fields map[string]interface{}) Opt {
	return func(err error) error {
		return &fieldsError{error: err, fields: fields}
	}
}

type responseError struct {
	error
	body   interface{}
	status int
}

func (e *responseError) Response() (interface{}, int) { return e.body, e.status }

func (e *responseError) Unwrap() error { return e.error }

type fieldsError struct {
	error
	fields map[string]interface{}
}

func (e *fieldsError) Fields() map[string]interface{} { return e.fields }

func (e *fieldsError) Unwrap() error { return e.error }

// Response returns the outermost response attached to err.
func Response(err error) (body interface{}, status int, ok bool) {
	var re interface {
		Response() (interface{}, int)
	}
	if errors.As(err, &re) {
		body, status = re.Response()
		return body, status, true
	}
	return nil, 0, false
}

// Fields merges the log fields attached anywhere in err's chain. Outer
// decorations win on key clashes.
func Fields(err error) (map[string]interface{}, bool) {
	var out map[string]interface{}

	for e := err; e != nil; e = errors.Unwrap(e) {
		fe, ok := e.(interface{ Fields() map[string]interface{} })
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]interface{})
		}
		for k, v := range fe.Fields() {
			if _, seen := out[k]; !seen {
				out[k] = v
			}
		}
	}

	return out, out != nil
}
