package accessctl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
)

func TestPolicy(t *testing.T) {
	require := require.New(t)

	// Empty policy.
	policy := NewPolicy()
	require.False(policy.IsAllowed("anne", "read"), "Anne should not have read access when policy is empty")

	// Remove nonexisting rule from an empty policy.
	policy.Deny("anne", "write")

	// Adding rules.
	policy.Allow("anne", "read")
	policy.Allow("bob", "write")
	require.True(policy.IsAllowed("anne", "read"), "Anne should have read access")
	require.False(policy.IsAllowed("anne", "write"), "Anne should not have write access")
	require.False(policy.IsAllowed("bob", "read"), "Bob should not have read access")
	require.True(policy.IsAllowed("bob", "write"), "Bob should have write access")

	// Removing rules.
	policy.Deny("anne", "read")
	policy.Deny("bob", "write")
	require.False(policy.IsAllowed("anne", "read"), "Anne should not have read access")
	require.False(policy.IsAllowed("bob", "write"), "Bob should not have write access")

	// Wildcard rules.
	policy.Allow("anne", "read")
	require.False(policy.IsAllowed("bob", "write"), "Bob should not have write access")
	policy.AllowAll("write")
	require.True(policy.IsAllowed("anne", "write"), "Anne should have write access")
	require.True(policy.IsAllowed("bob", "write"), "Bob should have write access")
	policy.Allow("bob", "write")
	policy.Deny(AnySubject, "write")
	require.False(policy.IsAllowed("anne", "write"), "Anne should not have write access")
	require.True(policy.IsAllowed("bob", "write"), "Bob should have write access")
}

func TestClone(t *testing.T) {
	require := require.New(t)

	policy := NewPolicy()
	policy.Allow("anne", "read")

	clone := policy.Clone()
	clone.Deny("anne", "read")
	clone.Allow("bob", "read")

	require.True(policy.IsAllowed("anne", "read"), "original must be unaffected by clone mutation")
	require.False(policy.IsAllowed("bob", "read"), "original must be unaffected by clone mutation")
	require.False(clone.IsAllowed("anne", "read"))
}

func TestSubjectFromAddress(t *testing.T) {
	require := require.New(t)

	ctx := address.NewContext("accessctl-test: subject", 0)
	a1, err := address.NewRawAddress(ctx, bytes.Repeat([]byte{0x01}, address.RawSize))
	require.NoError(err)
	a2, err := address.NewRawAddress(ctx, bytes.Repeat([]byte{0x02}, address.RawSize))
	require.NoError(err)

	s1 := SubjectFromAddress(a1)
	require.Equal(s1, SubjectFromAddress(a1), "subjects should be deterministic")
	require.NotEqual(s1, SubjectFromAddress(a2))

	policy := NewPolicy()
	policy.Allow(s1, "read")
	require.True(policy.IsAllowed(s1, "read"))
	require.False(policy.IsAllowed(SubjectFromAddress(a2), "read"))
}
