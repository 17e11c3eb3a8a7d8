package ai

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

// lookupPath walks a decoded JSON value.
func lookupPath(doc any, p provider.Path) (any, bool) {
	cur := doc
	for _, seg := range p {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// firstString returns the first path that resolves to a non-blank string.
func firstString(doc any, paths []provider.Path) (string, bool) {
	for _, p := range paths {
		v, ok := lookupPath(doc, p)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}
