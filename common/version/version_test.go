package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		str      string
		expected Version
		valid    bool
	}{
		{"3.5.0", Version{3, 5, 0}, true},
		{"3.5", Version{3, 5, 0}, true},
		{"1", Version{1, 0, 0}, true},
		{"1.18.3", Version{1, 18, 3}, true},
		{"3.5.0-dev", Version{3, 5, 0}, true},
		{"1.19rc1", Version{}, false},
		{"1.2.3.4", Version{}, false},
		{"", Version{}, false},
		{"70000.0.0", Version{}, false},
	} {
		v, err := FromString(tc.str)
		if !tc.valid {
			require.Error(err, "FromString(%s)", tc.str)
			continue
		}
		require.NoError(err, "FromString(%s)", tc.str)
		require.Equal(tc.expected, v, "FromString(%s)", tc.str)
	}
}

func TestU64RoundTrip(t *testing.T) {
	require := require.New(t)

	v := Version{Major: 3, Minor: 5, Patch: 1}
	require.Equal(v, FromU64(v.ToU64()))
	require.Equal("3.5.1", v.String())
	require.Equal(Version{3, 5, 0}, v.MajorMinor())
}
