package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/inspect"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/pagemap"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/stats"
)

func TestWritePage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, WritePage(&buf, inspect.Page{
		Addr:   0x401000,
		Entry:  pagemap.Entry(pagemap.SwappedBit | 0x1f),
		Region: procfs.Region{Start: 0x400000, End: 0x402000, Path: "/lib/x"},
	}))
	require.NoError(t, WritePage(&buf, inspect.Page{
		Addr:   0x7000,
		Entry:  pagemap.Entry(pagemap.PresentBit | 0xabc),
		Region: procfs.Region{Start: 0x7000, End: 0x8000},
	}))

	assert.Equal(t, "401000 1f true /lib/x\n7000 abc false none\n", buf.String())
}

func TestWriteStats(t *testing.T) {
	t.Parallel()

	snapshot := stats.Snapshot{
		"/lib/x": {Swapped: 2, Present: 1, Unmapped: 0, Total: 3},
		"anon":   {Swapped: 0, Present: 256, Unmapped: 10, Total: 266},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, snapshot, 4096, &mem.SwapMemoryStat{Total: 1 << 30, Used: 1 << 29, UsedPercent: 50}))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "anon swapped=0 present=256 unmapped=10 total=266 (0 B swapped, 1.0 MiB present)", lines[0])
	assert.Equal(t, "/lib/x swapped=2 present=1 unmapped=0 total=3 (8.0 KiB swapped, 4.0 KiB present)", lines[1])
	assert.Contains(t, buf.String(), "Pages              269")
	assert.Contains(t, buf.String(), "Host swap          512 MiB / 1.0 GiB used (50.0%)")
}

func TestWriteStats_NoSwapInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, stats.Snapshot{}, 4096, nil))

	assert.NotContains(t, buf.String(), "Host swap")
	assert.Contains(t, buf.String(), "Backing objects    0")
}

func TestWriteStatsJSON(t *testing.T) {
	t.Parallel()

	snapshot := stats.Snapshot{
		"/lib/x": {Swapped: 2, Total: 2},
		"anon":   {Present: 1, Total: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatsJSON(&buf, snapshot))

	var decoded []stats.KeyStats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "anon", decoded[0].Key)
	assert.Equal(t, uint64(2), decoded[1].Stats.Swapped)
	assert.Contains(t, buf.String(), `"unmapped": 0`)
}

func TestWriteRanges(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteRanges(&buf, inspect.RegionRanges{
		Region:  procfs.Region{Start: 0x1000, End: 0x5000},
		Present: []inspect.AddrRange{{Start: 0x1000, End: 0x3000}},
		Swapped: []inspect.AddrRange{{Start: 0x4000, End: 0x5000}},
	}))

	assert.Equal(t, "1000-5000 none\n  present [1000, 3000) 8.0 KiB\n  swapped [4000, 5000) 4.0 KiB\n", buf.String())
}
