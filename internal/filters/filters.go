// Package filters parses list-endpoint query parameters.
package filters

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseIDs turns a comma-separated list such as "1,2,3" into ids, keeping
// their order. An empty string yields no ids. Every element must be a base-10
// integer; surrounding spaces are ignored.
func ParseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("element %d (%q) is not an integer id", i+1, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseFlag reads an integer switch such as assigned_only. Empty means
// false, 0 means false, any other integer means true.
func ParseFlag(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%q is not an integer", s)
	}
	return n != 0, nil
}
