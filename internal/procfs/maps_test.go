package procfs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMaps = `55d0c8a00000-55d0c8a02000 r--p 00000000 08:01 1835023                    /usr/bin/cat
55d0c8a02000-55d0c8a07000 r-xp 00002000 08:01 1835023                    /usr/bin/cat
55d0ca1f4000-55d0ca215000 rw-p 00000000 00:00 0                          [heap]
7f4c1a400000-7f4c1a6e9000 r--p 00000000 08:01 1840290                    /usr/lib/locale/locale-archive
7f4c1a800000-7f4c1a803000 rw-p 00000000 00:00 0
7f4c1a900000-7f4c1a901000 rw-s 00000000 00:01 1024                       /memfd:buffer (deleted)
7ffd6c5e2000-7ffd6c603000 rw-p 00000000 00:00 0                          [stack]
`

func TestParseMaps(t *testing.T) {
	t.Parallel()

	regions, err := ParseMaps(strings.NewReader(sampleMaps))
	require.NoError(t, err)

	expected := []Region{
		{Start: 0x55d0c8a00000, End: 0x55d0c8a02000, Path: "/usr/bin/cat"},
		{Start: 0x55d0c8a02000, End: 0x55d0c8a07000, Path: "/usr/bin/cat"},
		{Start: 0x55d0ca1f4000, End: 0x55d0ca215000, Path: "[heap]"},
		{Start: 0x7f4c1a400000, End: 0x7f4c1a6e9000, Path: "/usr/lib/locale/locale-archive"},
		{Start: 0x7f4c1a800000, End: 0x7f4c1a803000},
		{Start: 0x7f4c1a900000, End: 0x7f4c1a901000, Path: "/memfd:buffer"},
		{Start: 0x7ffd6c5e2000, End: 0x7ffd6c603000, Path: "[stack]"},
	}

	assert.Equal(t, expected, regions)
	assert.True(t, regions[4].IsAnonymous())
	assert.Equal(t, AnonymousKey, regions[4].Key())
	assert.Equal(t, "[heap]", regions[2].Key())
}

func TestParseMaps_Empty(t *testing.T) {
	t.Parallel()

	regions, err := ParseMaps(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestParseMaps_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{name: "no dash", line: "55d0c8a00000 r--p 00000000 08:01 1835023 /usr/bin/cat"},
		{name: "bad start", line: "zz-55d0c8a02000 r--p 00000000 08:01 0"},
		{name: "bad end", line: "55d0c8a00000-xyz r--p 00000000 08:01 0"},
		{name: "inverted range", line: "2000-1000 r--p 00000000 08:01 0"},
		{name: "blank line", line: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			input := "1000-2000 r--p 00000000 00:00 0\n" + tt.line + "\n"
			_, err := ParseMaps(strings.NewReader(input))
			require.ErrorIs(t, err, ErrMalformedMaps)
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestListRegions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pid := 4242
	require.NoError(t, os.MkdirAll(filepath.Join(root, strconv.Itoa(pid)), 0o755))
	require.NoError(t, os.WriteFile(MapsPath(root, pid), []byte(sampleMaps), 0o644))

	regions, err := ListRegions(root, pid)
	require.NoError(t, err)
	require.Len(t, regions, 7)
	assert.Equal(t, uint64(0x55d0c8a00000), regions[0].Start)
}

func TestListRegions_ProcessNotFound(t *testing.T) {
	t.Parallel()

	_, err := ListRegions(t.TempDir(), 1)
	require.ErrorIs(t, err, ErrProcessNotFound)
}

func TestRegion_PageCount(t *testing.T) {
	t.Parallel()

	r := Region{Start: 0x400000, End: 0x403000}
	assert.Equal(t, uint64(0x3000), r.Size())
	assert.Equal(t, uint64(3), r.PageCount(4096))
	assert.Equal(t, uint64(0), (&Region{Start: 0x400000, End: 0x400000}).PageCount(4096))
}

func TestRegion_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1000-2000 none", Region{Start: 0x1000, End: 0x2000}.String())
	assert.Equal(t, "1000-2000 /lib/x", Region{Start: 0x1000, End: 0x2000, Path: "/lib/x"}.String())
}
