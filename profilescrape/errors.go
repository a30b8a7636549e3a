package profilescrape

import "github.com/hazyhaar/linkscrape/profilescrape/internal/fault"

// Failure kinds. Every error returned by Scrape matches exactly one of them
// through errors.Is, except context errors raised while waiting for a slot.
var (
	ErrInvalidTarget           = fault.ErrInvalidTarget
	ErrMissingCredentials      = fault.ErrMissingCredentials
	ErrFormNotFound            = fault.ErrFormNotFound
	ErrNavigation              = fault.ErrNavigation
	ErrAuthenticationExhausted = fault.ErrAuthenticationExhausted
	ErrIO                      = fault.ErrIO
)

// KindOf returns the stable snake_case name of err's kind ("invalid_target",
// "navigation_failure", ...), "internal" for unclassified errors and "" for nil.
func KindOf(err error) string { return fault.KindOf(err) }
