// Package accessctl implements subject/action access control policies.
package accessctl

import (
	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
)

// Subject is an access control subject.
type Subject string

// AnySubject is the wildcard subject which matches every caller.
const AnySubject = Subject("*")

// SubjectFromAddress returns a Subject for the given address.
func SubjectFromAddress(addr address.Address) Subject {
	data, _ := addr.MarshalBinary()
	return Subject(string(data))
}

// Action is an access control action.
type Action string

// Policy maps from Actions to a mapping from Subjects to booleans indicating
// whether the given subject is allowed to perform the given action or not.
type Policy map[Action]map[Subject]bool

// NewPolicy returns an empty policy.
func NewPolicy() Policy {
	return make(Policy)
}

// Allow adds a policy rule that allows the given Subject to perform the given
// Action.
func (p Policy) Allow(sub Subject, act Action) {
	if p[act] == nil {
		p[act] = make(map[Subject]bool)
	}
	p[act][sub] = true
}

// AllowAll adds a policy rule that allows any Subject to perform the given
// Action.
func (p Policy) AllowAll(act Action) {
	p.Allow(AnySubject, act)
}

// Deny removes a policy rule that allows the given Subject to perform the
// given Action.
func (p Policy) Deny(sub Subject, act Action) {
	if p[act] == nil {
		return
	}
	delete(p[act], sub)
}

// IsAllowed returns a boolean indicating whether the given Subject is allowed
// to perform the given Action under the current Policy.
func (p Policy) IsAllowed(sub Subject, act Action) bool {
	if p[act] == nil {
		return false
	}
	return p[act][sub] || p[act][AnySubject]
}

// Clone returns a deep copy of the policy.
func (p Policy) Clone() Policy {
	c := make(Policy, len(p))
	for act, subs := range p {
		cs := make(map[Subject]bool, len(subs))
		for sub, ok := range subs {
			cs[sub] = ok
		}
		c[act] = cs
	}
	return c
}
