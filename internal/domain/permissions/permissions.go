// Package permissions models the capability set checked before privileged
// transitions.
package permissions

import "strings"

// Capability is a single permission bit.
type Capability uint16

// Known capabilities. Bit values match the list's historic account flags.
const (
	ExtendedAccess    Capability = 0x1
	ListHelper        Capability = 0x2
	ListModerator     Capability = 0x4
	ListAdministrator Capability = 0x8
	Moderator         Capability = 0x2000
	Administrator     Capability = 0x4000
)

var names = []struct {
	cap  Capability
	name string
}{
	{ExtendedAccess, "extended_access"},
	{ListHelper, "list_helper"},
	{ListModerator, "list_moderator"},
	{ListAdministrator, "list_administrator"},
	{Moderator, "moderator"},
	{Administrator, "administrator"},
}

// implies maps a capability to the ones it grants transitively.
var implies = map[Capability]Capability{
	ListModerator:     ListHelper,
	ListAdministrator: ListModerator,
	Administrator:     Moderator,
}

func (c Capability) String() string {
	for _, n := range names {
		if n.cap == c {
			return n.name
		}
	}
	return "unknown"
}

// Set is a bitmask of capabilities held by an identity.
type Set uint16

// NewSet builds a Set from individual capabilities.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

// Expand returns s with every implied capability added.
func (s Set) Expand() Set {
	out := s
	for changed := true; changed; {
		changed = false
		for from, to := range implies {
			if out&Set(from) != 0 && out&Set(to) == 0 {
				out |= Set(to)
				changed = true
			}
		}
	}
	return out
}

// Names lists the explicitly held capabilities.
func (s Set) Names() []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if s&Set(n.cap) != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// ParseSet parses a comma separated list of capability names.
func ParseSet(list string) (Set, bool) {
	var s Set
	for _, part := range strings.Split(list, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		found := false
		for _, n := range names {
			if n.name == part {
				s |= Set(n.cap)
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return s, true
}

// Identity is the requester as seen by the domain services.
type Identity struct {
	UserID      int64
	Name        string
	Permissions Set
}

// Anonymous is the identity of an unauthenticated requester.
var Anonymous = Identity{}

// IsAnonymous reports whether the identity carries no user.
func (i Identity) IsAnonymous() bool {
	return i.UserID == 0
}

// HasCapability reports whether id holds c, directly or through implication.
func HasCapability(id Identity, c Capability) bool {
	return id.Permissions.Expand()&Set(c) != 0
}

// Authorizer answers capability questions. Services depend on this rather
// than on HasCapability so tests and deployments can swap the policy.
type Authorizer interface {
	HasCapability(id Identity, c Capability) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(id Identity, c Capability) bool

// HasCapability calls f.
func (f AuthorizerFunc) HasCapability(id Identity, c Capability) bool { return f(id, c) }

// Default is the implication-aware policy.
var Default Authorizer = AuthorizerFunc(HasCapability)
