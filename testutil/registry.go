package testutil

import (
	"time"

	"github.com/skosovsky/kernelsy"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// with fns registered under group. It panics on registration errors.
func NewTestRegistry(group string, fns ...kernelsy.Function) *kernelsy.Registry {
	reg := kernelsy.NewRegistry(
		kernelsy.WithDefaultTimeout(30*time.Second),
		kernelsy.WithRecoverPanics(true),
	)
	for _, fn := range fns {
		if err := reg.Register(group, fn); err != nil {
			panic(err)
		}
	}
	return reg
}
