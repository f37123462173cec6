package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b.txt", want: "/a/b.txt"},
		{in: "/a/b.txt", want: "/a/b.txt"},
		{in: "/a//b.txt", want: "/a/b.txt"},
		{in: "/a/./b.txt", want: "/a/b.txt"},
		{in: "/a/../b.txt", wantErr: true},
		{in: "../b.txt", wantErr: true},
		{in: "/", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := normalizePath(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPutUniquePathNoCollision(t *testing.T) {
	got, err := putUniquePath("/docs/a.bin", "1700000000_abcd", func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Equal(t, "/docs/a.bin", got)
}

func TestPutUniquePathAppendsSuffixOnCollision(t *testing.T) {
	taken := map[string]bool{"/docs/a.bin": true}
	got, err := putUniquePath("/docs/a.bin", "1700000000_abcd", func(p string) (bool, error) {
		return taken[p], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/docs/a1700000000_abcd.bin", got)
	assert.False(t, taken[got])
}

func TestPutUniquePathRetriesUntilFree(t *testing.T) {
	taken := map[string]bool{
		"/docs/a.bin":                  true,
		"/docs/a1700000000_abcd.bin":   true,
		"/docs/a1700000000_abcd_1.bin": true,
	}
	got, err := putUniquePath("/docs/a.bin", "1700000000_abcd", func(p string) (bool, error) {
		return taken[p], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/docs/a1700000000_abcd_2.bin", got)
}
