package ability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Validate checks l against the admin rules: only known hooks, only known
// ability types, and an explicit value on every entry.
//
// Postcondition: Returns nil if l is valid, or an error listing every violation.
func Validate(l Logic) error {
	var errs []string
	for _, h := range sortedHooks(l) {
		if !h.Valid() {
			errs = append(errs, fmt.Sprintf("unknown hook %q", h))
			continue
		}
		for i, e := range l[h] {
			if e.Kind() == KindUnknown {
				errs = append(errs, fmt.Sprintf("%s[%d]: unknown ability type %q", h, i, e.Type))
			}
			if e.Value == nil {
				errs = append(errs, fmt.Sprintf("%s[%d]: entry must include a value", h, i))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("ability logic validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ParseJSON decodes and validates a raw ability document. An empty document
// (no bytes, "null" or "{}") is valid and yields an empty Logic.
//
// Postcondition: Returns a validated Logic or a non-nil error.
func ParseJSON(data []byte) (Logic, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Logic{}, nil
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parsing ability logic: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ability logic must be a JSON object")
	}
	var errs []string
	for _, hook := range orderedKeys(obj) {
		if !Hook(hook).Valid() {
			errs = append(errs, fmt.Sprintf("unknown hook %q", hook))
			continue
		}
		entries, ok := obj[hook].([]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("hook %q must contain a list of ability entries", hook))
			continue
		}
		for i, rawEntry := range entries {
			errs = append(errs, checkEntry(hook, i, rawEntry)...)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("ability logic validation failed: %s", strings.Join(errs, "; "))
	}

	var l Logic
	if err := json.Unmarshal(trimmed, &l); err != nil {
		return nil, fmt.Errorf("decoding ability logic: %w", err)
	}
	if err := Validate(l); err != nil {
		return nil, err
	}
	return l, nil
}

// checkEntry reports the shape problems of one raw JSON entry.
func checkEntry(hook string, i int, raw any) []string {
	entry, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s[%d]: each ability entry must be an object", hook, i)}
	}
	var errs []string
	if typ, ok := entry["type"].(string); !ok {
		errs = append(errs, fmt.Sprintf("%s[%d]: each ability entry must include a 'type' string", hook, i))
	} else if ParseKind(typ) == KindUnknown {
		errs = append(errs, fmt.Sprintf("%s[%d]: unknown ability type %q", hook, i, typ))
	}
	if v, ok := entry["value"]; !ok {
		errs = append(errs, fmt.Sprintf("%s[%d]: each ability entry must include a 'value' field", hook, i))
	} else if _, ok := v.(float64); !ok {
		errs = append(errs, fmt.Sprintf("%s[%d]: value must be a number", hook, i))
	}
	return errs
}

// orderedKeys returns the keys of obj in the same order sortedHooks uses.
func orderedKeys(obj map[string]any) []string {
	l := make(Logic, len(obj))
	for k := range obj {
		l[Hook(k)] = nil
	}
	hooks := sortedHooks(l)
	out := make([]string, len(hooks))
	for i, h := range hooks {
		out[i] = string(h)
	}
	return out
}

// sortedHooks returns the keys of l with known hooks first in lifecycle
// order, followed by any unknown keys in lexical order.
func sortedHooks(l Logic) []Hook {
	out := make([]Hook, 0, len(l))
	for _, h := range Hooks {
		if _, ok := l[h]; ok {
			out = append(out, h)
		}
	}
	var unknown []string
	for h := range l {
		if !h.Valid() {
			unknown = append(unknown, string(h))
		}
	}
	sort.Strings(unknown)
	for _, u := range unknown {
		out = append(out, Hook(u))
	}
	return out
}
