package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotSet is returned by a section that cannot work without Key,
// such as wallet.private_key for the commands that sign
type ErrKeyNotSet struct {
	Key string
}

func (e ErrKeyNotSet) Error() string {
	return fmt.Sprintf("configuration key %s is required", e.Key)
}

// ErrInvalidValue is returned when Key holds a value the section does
// not accept. Values describes what is accepted
type ErrInvalidValue struct {
	Key          string
	InvalidValue string
	Values       []string
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("configuration key %s set to %q, expected one of: %s",
		e.Key, e.InvalidValue, strings.Join(e.Values, ", "))
}

// ErrParseFlags wraps a command line that could not be parsed
type ErrParseFlags struct {
	Cause error
}

func (e ErrParseFlags) Error() string {
	return fmt.Sprintf("failed to parse flags: %s", e.Cause.Error())
}

func (e ErrParseFlags) Unwrap() error {
	return e.Cause
}

// ErrAlreadyParsed is returned when Parse is called a second time
var ErrAlreadyParsed = errors.New("arguments already parsed")
