// Package logging provides panic recovery with stack trace logging.
package logging

import (
	"fmt"
	"runtime/debug"
	"time"
)

// RecoveryHandler handles panics with logging
type RecoveryHandler struct {
	Component string
	OnPanic   func(err interface{}, stack string)
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{Component: component}
}

// Wrap executes fn with panic recovery
func (r *RecoveryHandler) Wrap(fn func()) {
	defer r.recover()
	fn()
}

// WrapError executes fn with panic recovery, returning error on panic
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			err = r.handlePanic(rec, stack)
		}
	}()
	return fn()
}

func (r *RecoveryHandler) recover() {
	if rec := recover(); rec != nil {
		stack := string(debug.Stack())
		r.handlePanic(rec, stack)
	}
}

func (r *RecoveryHandler) handlePanic(rec interface{}, stack string) error {
	emit(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelError,
		Component: r.Component,
		Event:     "panic_recovered",
		Error:     fmt.Sprintf("%v", rec),
		Extra: map[string]interface{}{
			"stack":     stack,
			"recovered": true,
		},
	})

	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}

	return fmt.Errorf("panic in %s: %v", r.Component, rec)
}

// SafeGo launches a goroutine with panic recovery. Used for the
// per-plan mutation actors so one poisoned plan cannot take down the
// process.
func SafeGo(component string, fn func()) {
	go func() {
		handler := NewRecoveryHandler(component)
		handler.Wrap(fn)
	}()
}

// Recover is a simple defer-able recovery that logs panics
func Recover(component string) {
	if rec := recover(); rec != nil {
		stack := string(debug.Stack())
		handler := NewRecoveryHandler(component)
		handler.handlePanic(rec, stack)
	}
}
