package adapter

import (
	"errors"
	"fmt"
)

// ErrPanic marks an adapter call that panicked instead of returning.
var ErrPanic = errors.New("adapter panic")

// Recover turns a panic in the calling function into an ErrPanic stored in
// *err. It must be deferred directly:
//
//	defer adapter.Recover(&err)
func Recover(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrPanic, r)
	}
}
