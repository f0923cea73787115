// Package validate implements the declarative input validation that runs
// before anything else in the request pipeline.
//
// Handlers declare one rule per field on a Collector; every violated rule
// contributes its message, and Err() returns a single ValidationFailed error
// carrying ALL of them — the client sees every problem at once, not just the
// first. A validation failure short-circuits the pipeline: no credential
// check, no ownership check, no persistence, no media upload.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mahir/carmarket/internal/apperror"
)

// Resource ids are 24-character hex strings.
var hexIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// Deliberately loose: the mailbox spec is unenforceable by regexp anyway,
// this catches the obvious garbage.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Collector accumulates rule violations for one request.
//
// The zero value is ready to use:
//
//	var c validate.Collector
//	c.Require(model, "Model is required")
//	if err := c.Err(); err != nil { ... }
type Collector struct {
	messages []string
}

// Require adds a violation when value is empty after trimming.
func (c *Collector) Require(value, message string) {
	if strings.TrimSpace(value) == "" {
		c.messages = append(c.messages, message)
	}
}

// Email adds a violation when value is not a plausible email address.
func (c *Collector) Email(value, message string) {
	if !emailPattern.MatchString(strings.TrimSpace(value)) {
		c.messages = append(c.messages, message)
	}
}

// MinLength adds a violation when value is shorter than min bytes.
func (c *Collector) MinLength(value string, min int, message string) {
	if len(value) < min {
		c.messages = append(c.messages, message)
	}
}

// OneOf adds a violation when a non-empty value is not a member of allowed.
// An empty value passes — pair with Require when the field is mandatory.
func (c *Collector) OneOf(value string, allowed []string, message string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	c.messages = append(c.messages, message)
}

// Numeric adds a violation when a non-empty value does not parse as a
// number. Returns the parsed value (0 when absent or invalid).
func (c *Collector) Numeric(value, message string) float64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		c.messages = append(c.messages, message)
		return 0
	}
	return n
}

// HexID adds a violation when value is not a 24-character hex identifier.
func (c *Collector) HexID(value, message string) {
	if !hexIDPattern.MatchString(value) {
		c.messages = append(c.messages, message)
	}
}

// Year parses a non-empty manufacturing year. Accepted forms: "2006",
// "2006-01", "2006-01-02", and RFC 3339. Returns the zero time when the
// value is empty or invalid.
func (c *Collector) Year(value, message string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006", "2006-01", "2006-01-02", time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	c.messages = append(c.messages, message)
	return time.Time{}
}

// Err returns nil when every rule passed, otherwise a single
// apperror.ValidationFailed carrying all collected messages.
func (c *Collector) Err() error {
	if len(c.messages) == 0 {
		return nil
	}
	return apperror.ValidationFailed(c.messages...)
}

// SplitList coerces a client-sent scalar into a set of strings: a
// comma-separated string is split, each entry trimmed, and empties dropped.
// Duplicates are removed, keeping first-seen order, because tags and images
// behave as sets.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// Page parses a 1-based page number, defaulting to 1 for anything absent,
// unparsable, or below 1. A bad page value never fails a request.
func Page(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
