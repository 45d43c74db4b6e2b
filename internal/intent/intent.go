// Package intent classifies what a provider redirect is for: completing a
// password-recovery flow or a standard sign-in. Any one provider-supplied
// signal can be absent, renamed, or stripped by intermediate redirects, so the
// classifier checks four independent channels with a fixed precedence; the
// classification is correct as long as at least one signal survives.
package intent

import "strings"

// Intent is the classified purpose of a callback invocation.
type Intent int

const (
	Standard Intent = iota
	Recovery
)

func (i Intent) String() string {
	switch i {
	case Recovery:
		return "recovery"
	case Standard:
		return "standard"
	default:
		return "unknown"
	}
}

// RecoveryFlag is the persisted intent flag value that marks a
// password-recovery flow.
const RecoveryFlag = "reset-password"

// Signals are the inputs the classifier considers.
type Signals struct {
	// TypeHint is the provider-supplied classification string, if any.
	TypeHint string

	// RedirectToHint is the URL the provider intends to send the user to.
	RedirectToHint string

	// Path is the path of the page currently handling the callback.
	Path string

	// Flag is the persisted client intent flag value, empty if unset.
	Flag string
}

// Classify returns the intent for the given signals. Rules are evaluated in
// order, first match wins; substring checks are case-insensitive.
func Classify(s Signals) Intent {
	typeHint := strings.ToLower(s.TypeHint)
	if strings.Contains(typeHint, "recovery") || strings.Contains(typeHint, "reset") {
		return Recovery
	}

	if strings.Contains(strings.ToLower(s.RedirectToHint), "/reset-password") {
		return Recovery
	}

	if strings.Contains(strings.ToLower(s.Path), "/reset-password") {
		return Recovery
	}

	if s.Flag == RecoveryFlag {
		return Recovery
	}

	return Standard
}
