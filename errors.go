// Package modred computes reduced-order linear models from snapshot data using
// balanced proper orthogonal decomposition (see package bpod) and the
// eigensystem realization algorithm (see package era).
//
// This file holds the error taxonomy shared by every package. Call sites wrap
// one of the sentinels with context, callers match with errors.Is.
package modred

import (
	"errors"
)

var (
	// ErrConfiguration is returned for invalid or missing parameters.
	ErrConfiguration = errors.New("configuration error")
	// ErrUndefinedState is returned when an operation needs an artifact that
	// has not been computed yet.
	ErrUndefinedState = errors.New("undefined state")
	// ErrData is returned for malformed input data.
	ErrData = errors.New("data error")
	// ErrNumerical is returned when a matrix can not be factored.
	ErrNumerical = errors.New("numerical error")
	// ErrIndex is returned when a requested mode index is out of range.
	ErrIndex = errors.New("index error")
)

var kinds = map[string]error{
	"configuration":   ErrConfiguration,
	"undefined_state": ErrUndefinedState,
	"data":            ErrData,
	"numerical":       ErrNumerical,
	"index":           ErrIndex,
}

// Kind returns a stable name for the class of err, or "" if err does not wrap
// one of the sentinels.
func Kind(err error) string {
	for name, sentinel := range kinds {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return ""
}

// FromKind rebuilds an error of class kind carrying msg. Unknown kinds give a
// plain error.
func FromKind(kind, msg string) error {
	sentinel, ok := kinds[kind]
	if !ok {
		return errors.New(msg)
	}
	return &kindError{msg: msg, sentinel: sentinel}
}

type kindError struct {
	msg      string
	sentinel error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.sentinel }
