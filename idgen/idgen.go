// Package idgen generates identifiers for scrape calls and HTTP requests.
//
// The strategy is a startup-time choice: components take a Generator, so
// tests can inject a deterministic one.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 produces RFC 9562 version 7 UUIDs (time-sortable).
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen ("scr_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence produces "1", "2", ... Intended for tests.
func Sequence() Generator {
	var n atomic.Int64
	return func() string {
		return strconv.FormatInt(n.Add(1), 10)
	}
}

// Default is the generator used when none is configured.
var Default Generator = UUIDv7()

// New produces an ID with Default.
func New() string {
	return Default()
}
