package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedLanguageValue   = errors.New("malformed language value")
	ErrUnrecognizedResource     = errors.New("unrecognized resource")
	ErrRetrieval                = errors.New("retrieval error")
	ErrInputNotFound            = errors.New("input not found")
	ErrUnsupportedSourceVersion = errors.New("unsupported source version")
	ErrConfiguration            = errors.New("configuration error")
	ErrValidation               = errors.New("validation error")
)

// Exit codes returned by the CLI for classified failures.
const (
	ExitFailure     = 1
	ExitInput       = 2
	ExitRetrieval   = 3
	ExitUnsupported = 4
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an error to the process exit status the CLI should use.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInputNotFound), errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return ExitInput
	case errors.Is(err, ErrRetrieval):
		return ExitRetrieval
	case errors.Is(err, ErrUnsupportedSourceVersion), errors.Is(err, ErrUnrecognizedResource),
		errors.Is(err, ErrMalformedLanguageValue):
		return ExitUnsupported
	default:
		return ExitFailure
	}
}

// Kind returns a short classification label for err, suitable for reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedLanguageValue):
		return "malformed_language_value"
	case errors.Is(err, ErrUnrecognizedResource):
		return "unrecognized_resource"
	case errors.Is(err, ErrRetrieval):
		return "retrieval"
	case errors.Is(err, ErrInputNotFound):
		return "input_not_found"
	case errors.Is(err, ErrUnsupportedSourceVersion):
		return "unsupported_version"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "upgrade failure"
	}
	return strings.Join(parts, ": ")
}
