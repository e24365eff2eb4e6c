package errors

import "fmt"

func RecoverPanic(r interface{}) error {
	switch v := r.(type) {
	case error:
		return ErrProcessingFailed.WithCause(v).WithDetail("message", "panic during processing")
	default:
		return ErrProcessingFailed.WithCause(fmt.Errorf("panic: %v", v))
	}
}
