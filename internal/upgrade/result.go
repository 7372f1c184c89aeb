package upgrade

import (
	"encoding/json"
	"errors"
	"fmt"

	"preziup/internal/services"
)

// Warning codes recorded in Result.Warnings.
const (
	WarnExtensionDropped   = "extension_dropped"
	WarnMisplacedProperty  = "misplaced_property"
	WarnUnknownService     = "unknown_service"
	WarnUnknownBehavior    = "unknown_behavior"
	WarnRangeBehavior      = "range_behavior_dropped"
	WarnRangeCycle         = "range_cycle"
	WarnDerefFailed        = "deref_failed"
	WarnAlreadyUpgraded    = "already_upgraded"
	WarnUnrecognizedSource = "unrecognized_version"
	WarnMintedID           = "minted_id"
)

// Warning is a non-fatal condition met while rewriting.
type Warning struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of one upgrade.
type Result struct {
	Document map[string]any `json:"document"`
	Warnings []Warning      `json:"warnings,omitempty"`
	Failures []*PathError   `json:"failures,omitempty"`
	// Cached is set when the document came from the upgraded-document cache.
	Cached bool `json:"cached,omitempty"`
}

// PathError locates a failure at a key path such as /sequences/0/canvases/3.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	path := e.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s: %v", path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// MarshalJSON renders the failure for reports.
func (e *PathError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		Kind  string `json:"kind"`
		Error string `json:"error"`
	}{e.Path, services.Kind(e.Err), e.Err.Error()})
}

func asPathError(path string, err error) *PathError {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe
	}
	return &PathError{Path: path, Err: err}
}

func unrecognized(path, message string) error {
	return &PathError{
		Path: path,
		Err:  services.Wrap(services.ErrUnrecognizedResource, "upgrade", "dispatch", message, nil),
	}
}
