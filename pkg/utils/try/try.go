// Package try shortens (value, error) handling in tests.
package try

// Fataler is anything which can stop with an error, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Result holds a (value, error) pair.
type Result[T any] struct {
	value T
	err   error
}

// To captures the returned values of a call.
//
//	f := try.To(os.Open(name)).OrFatal(t)
func To[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

// Get returns the pair as it was captured.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// OrFatal returns the value, or calls ftl.Fatal when the error is not nil.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.err == nil {
		return r.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(r.err)
	return *new(T)
}
