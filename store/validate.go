// Package store implements the storage and revisioning engine: namespace
// mapping, dynamic schema provisioning, content-dedup writes, revisioned
// retrieval, and tag indexing described by the object store's component
// design.
package store

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"objectstore/models"
)

// namePattern is the allowed-character rule for tags and identifiers:
// letters, digits, and the punctuation characters : + - _ / ~ #. The empty
// string is valid (an object with no tags has nothing to validate).
var namePattern = regexp.MustCompile(`^[A-Za-z0-9:+\-_/~#]*$`)

// IsValidName reports whether name matches the allowed-character rule for
// tags and identifiers.
func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

// suffixPattern is the stricter rule a mapping's physical-table suffix must
// satisfy before it is interpolated into DDL or DML: exactly six lowercase
// alphanumeric characters. This is narrower than IsValidName by design —
// it is the injection guard for dynamic table names (see schema.go).
var suffixPattern = regexp.MustCompile(`^[a-z0-9]{6}$`)

// isValidSuffix reports whether suffix is safe to interpolate into a table
// name as "objects_<suffix>" or "objects_tags_<suffix>".
func isValidSuffix(suffix string) bool {
	return suffixPattern.MatchString(suffix)
}

// ParseTagList parses the "tags" query parameter into a validated, ordered
// list of tag names. Two input forms are accepted:
//
//   - a comma-separated string: "alpha,beta,gamma"
//   - a JSON-array string: `["alpha","beta"]`
//
// Unlike the implementation this service was distilled from, the JSON-array
// form is parsed strictly: single quotes are never rewritten to double
// quotes before parsing, because doing so corrupts a tag that legitimately
// contains an apostrophe. A raw string that looks like a JSON array (starts
// with '[') but fails to parse as one is treated as a hard error rather
// than silently falling back to comma-splitting.
//
// Every element must satisfy IsValidName; otherwise ParseTagList returns an
// error wrapping models.ErrInvalidArgument. An empty or absent raw string
// yields a nil, nil result.
func ParseTagList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var tags []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil, fmt.Errorf("malformed tag list %q: %w", raw, models.ErrInvalidArgument)
		}
	} else {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			tags = append(tags, part)
		}
	}

	for _, tag := range tags {
		if !IsValidName(tag) {
			return nil, fmt.Errorf("invalid tag %q: %w", tag, models.ErrInvalidArgument)
		}
	}

	return tags, nil
}
