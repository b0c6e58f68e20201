package coherence

import (
	"strings"

	"github.com/okian/demonlist/internal/domain/apperr"
)

// Decision is the outcome of a conditional GET.
type Decision int

// Conditional outcomes.
const (
	Fresh Decision = iota
	NotModified
)

func (d Decision) String() string {
	if d == NotModified {
		return "not_modified"
	}
	return "fresh"
}

// HandleConditional compares an If-None-Match header value against the
// computed fingerprint. Weak comparison applies. Anything unparsable is a
// miss.
func HandleConditional(ifNoneMatch string, computed Fingerprint) Decision {
	tags, ok := parseTags(ifNoneMatch)
	if !ok {
		return Fresh
	}
	for _, t := range tags {
		if t == "*" || t == string(computed) {
			return NotModified
		}
	}
	return Fresh
}

// CheckPrecondition validates an If-Match header value. An empty header
// passes. Weak tags never match, as If-Match requires strong comparison.
func CheckPrecondition(ifMatch string, computed Fingerprint) error {
	if strings.TrimSpace(ifMatch) == "" {
		return nil
	}
	tags, ok := parseStrongTags(ifMatch)
	if ok {
		for _, t := range tags {
			if t == "*" || t == string(computed) {
				return nil
			}
		}
	}
	return apperr.New("coherence.CheckPrecondition", apperr.ErrPreconditionFailed,
		"resource changed since it was read")
}

func parseTags(header string) ([]string, bool) {
	return parse(header, true)
}

func parseStrongTags(header string) ([]string, bool) {
	return parse(header, false)
}

// parse splits a comma separated entity-tag list. The opaque part is
// returned without quotes and without the weak prefix.
func parse(header string, allowWeak bool) ([]string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, false
	}
	if header == "*" {
		return []string{"*"}, true
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "W/") {
			if !allowWeak {
				continue
			}
			part = part[2:]
		}
		if len(part) < 2 || part[0] != '"' || part[len(part)-1] != '"' {
			return nil, false
		}
		opaque := part[1 : len(part)-1]
		if strings.ContainsRune(opaque, '"') {
			return nil, false
		}
		out = append(out, opaque)
	}
	return out, len(out) > 0
}
