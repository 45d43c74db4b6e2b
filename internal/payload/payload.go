// Package payload extracts credential material from identity provider
// redirect URLs. Token-pair flows place access_token/refresh_token in the URL
// fragment; code-exchange flows place a single-use code in the query string.
package payload

import (
	"errors"
	"net/url"
)

// ErrMissingCredentials is returned when a redirect URL carries neither an
// exchange code nor a complete token pair.
var ErrMissingCredentials = errors.New("redirect carries no usable credentials")

// Kind identifies which credential variant a payload carries.
type Kind int

const (
	KindCode Kind = iota
	KindTokenPair
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindTokenPair:
		return "token_pair"
	default:
		return "unknown"
	}
}

// Payload is the credential material embedded in a provider redirect, plus
// any hint parameters the provider attached. Exactly one variant is set.
type Payload struct {
	Kind Kind

	// Code is the single-use exchange code (KindCode).
	Code string

	// AccessToken and RefreshToken form the token pair (KindTokenPair).
	AccessToken  string
	RefreshToken string

	// TypeHint is the provider-supplied flow classification, if any
	// (the "type" parameter, e.g. "recovery").
	TypeHint string

	// RedirectToHint is the URL the provider was told to eventually send
	// the user to, if any (the "redirect_to" parameter).
	RedirectToHint string
}

// Parse extracts a Payload from a full redirect URL. The query string and the
// fragment are parsed as two independent parameter maps; a code in the query
// takes precedence over a token pair in the fragment, even a stale one.
// Unknown parameters are ignored. Parse has no side effects.
func Parse(rawURL string) (*Payload, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	query := u.Query()

	// Providers encode the fragment the same way as a query string.
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		fragment = url.Values{}
	}

	p := &Payload{
		TypeHint:       firstOf(query, fragment, "type"),
		RedirectToHint: firstOf(query, fragment, "redirect_to"),
	}

	if code := query.Get("code"); code != "" {
		p.Kind = KindCode
		p.Code = code
		return p, nil
	}

	access := fragment.Get("access_token")
	refresh := fragment.Get("refresh_token")
	if access != "" && refresh != "" {
		p.Kind = KindTokenPair
		p.AccessToken = access
		p.RefreshToken = refresh
		return p, nil
	}

	return nil, ErrMissingCredentials
}

// firstOf returns the named parameter from the query if present, else from
// the fragment. Hints can arrive on either side depending on the flow.
func firstOf(query, fragment url.Values, name string) string {
	if v := query.Get(name); v != "" {
		return v
	}
	return fragment.Get(name)
}
