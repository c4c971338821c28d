// Package compact maintains the bounded "learnings" digest carried between
// batches instead of full per-item history, so context passed to the
// decomposition collaborator stays fixed-size regardless of menu length.
package compact

import (
	"strings"
	"unicode/utf8"

	"github.com/elegant-foods/costing-cli/internal/model"
)

// Separator joins observations inside the digest string. A visible separator
// keeps the digest readable when injected into a prompt.
const Separator = " | "

// DefaultMaxBytes caps the digest size unless configured otherwise.
const DefaultMaxBytes = 2000

// Compactor accumulates generalizable observations into a capped digest.
// The zero value is not usable; call New.
type Compactor struct {
	maxBytes int
}

// New builds a Compactor with the given byte cap. Non-positive caps fall
// back to DefaultMaxBytes.
func New(maxBytes int) *Compactor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Compactor{maxBytes: maxBytes}
}

// Update merges new observations into the existing digest and returns the
// new digest. Observations already present (after whitespace and case
// normalization) are dropped, so repeating a known catalog gap does not grow
// the digest. When the cap is exceeded, the oldest observations are evicted
// first.
func (c *Compactor) Update(existing string, observations []string) string {
	entries := split(existing)

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[canonical(e)] = true
	}

	for _, obs := range observations {
		obs = strings.TrimSpace(obs)
		if obs == "" {
			continue
		}
		key := canonical(obs)
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, obs)
	}

	// Once real observations exist, the placeholder seed is just noise.
	if len(entries) > 1 && entries[0] == model.DefaultLearnings {
		entries = entries[1:]
	}

	// FIFO eviction by insertion order until the digest fits.
	for len(entries) > 1 && length(entries) > c.maxBytes {
		entries = entries[1:]
	}
	out := strings.Join(entries, Separator)
	if len(out) > c.maxBytes {
		// Never split a rune at the cap; the digest is injected into prompts.
		cut := c.maxBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out
}

func split(digest string) []string {
	if strings.TrimSpace(digest) == "" {
		return nil
	}
	parts := strings.Split(digest, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func length(entries []string) int {
	n := 0
	for i, e := range entries {
		if i > 0 {
			n += len(Separator)
		}
		n += len(e)
	}
	return n
}

func canonical(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
