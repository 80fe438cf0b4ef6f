package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/conduit-ai/conduit/pkg/ports"
)

type redactionMiddleware struct {
	next     ports.RecordStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks the values of
// record fields whose keys match any of the patterns before they are
// persisted. Reads return the masked values.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.RecordStore) ports.RecordStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Put(ctx context.Context, kind, id string, value any) error {
	// Round-trip through JSON so struct records become maskable maps and
	// the caller's value is never mutated.
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(data, &asMap); err != nil {
		// Non-object records (arrays, scalars) pass through unmasked.
		return m.next.Put(ctx, kind, id, value)
	}

	maskMap(asMap, m.patterns)
	return m.next.Put(ctx, kind, id, asMap)
}

func (m *redactionMiddleware) Get(ctx context.Context, kind, id string, out any) error {
	return m.next.Get(ctx, kind, id, out)
}

func (m *redactionMiddleware) Delete(ctx context.Context, kind, id string) error {
	return m.next.Delete(ctx, kind, id)
}

func (m *redactionMiddleware) List(ctx context.Context, kind string) ([]string, error) {
	return m.next.List(ctx, kind)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		// Check key against patterns
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = "***"
				break
			}
		}

		// Recurse if map
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
