package confload

import (
	"errors"
	"fmt"
)

// ErrConfig is the base of the error taxonomy. Every error produced by
// readers, loaders and the factory matches it with errors.Is.
var ErrConfig = errors.New("config error")

// ConfigError reports a failure to construct the typed configuration, such as
// a missing required field, an unknown field or a type mismatch.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrConfig, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrConfig, e.Op, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return chain(e.Err)
}

// ReaderError reports that a configuration source was unreachable, denied
// access or answered with an error. Code carries the source's error code.
type ReaderError struct {
	Source string
	Code   string
	Err    error
}

func (e *ReaderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("read %s: %s", e.Source, e.Code)
	}
	return fmt.Sprintf("read %s: %s: %v", e.Source, e.Code, e.Err)
}

func (e *ReaderError) Unwrap() []error {
	return chain(e.Err)
}

// LoaderError reports that raw configuration text could not be parsed. Msg is
// the parser's diagnostic.
type LoaderError struct {
	Format string
	Msg    string
	Err    error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("load %s: %s", e.Format, e.Msg)
}

func (e *LoaderError) Unwrap() []error {
	return chain(e.Err)
}

func chain(err error) []error {
	if err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, err}
}
