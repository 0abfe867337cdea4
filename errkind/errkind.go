// Package errkind defines the error kinds the engine and its callers use.
//
// These are sentinel values, not exception types: callers compare against
// them with errors.Is and wrap them with fmt.Errorf("%w: ...") for context,
// the same pattern the rules package uses for parameter validation.
package errkind

import "errors"

var (
	// ErrInputMalformed is returned when election data fails validation:
	// a ballot references an unknown candidate, a multiplicity is not
	// positive, an ATL ballot uses a party that disallows ATL voting, or
	// vacancies are missing when the rule set requires them.
	ErrInputMalformed = errors.New("input malformed")

	// ErrRuleUnsupported is returned when a caller asks for an unknown
	// rule set name.
	ErrRuleUnsupported = errors.New("rule set unsupported")

	// ErrTieUnresolved is returned when a tie persists after historical
	// lookback, the explicit EC-decisions list, and (if configured) no
	// randomness fallback is available. It carries the affected
	// candidate set so the caller can supply an additional decision and
	// retry.
	ErrTieUnresolved = errors.New("tie unresolved")

	// ErrExtractionFailed is returned when an extraction sink refuses
	// the payload handed to it.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrIO is surfaced from external collaborators (loaders, writers).
	// The engine itself never produces it.
	ErrIO = errors.New("io error")
)
