package serialport

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc builds a /proc-like tree: pid directories with fd symlinks.
func fakeProc(t *testing.T, holders map[int]string) string {
	t.Helper()
	root := t.TempDir()
	for pid, device := range holders {
		fdDir := filepath.Join(root, strconv.Itoa(pid), "fd")
		require.NoError(t, os.MkdirAll(fdDir, 0o755))
		require.NoError(t, os.Symlink(device, filepath.Join(fdDir, "3")))
	}
	// Non-numeric entries must be skipped
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sys"), 0o755))
	return root
}

func newTestReclaimer(t *testing.T, root string) (*ProcReclaimer, *[]int) {
	t.Helper()
	var killed []int
	r := NewProcReclaimer(slog.Default())
	r.procRoot = root
	r.kill = func(pid int) error {
		killed = append(killed, pid)
		return nil
	}
	return r, &killed
}

func TestReclaimTerminatesHolder(t *testing.T) {
	root := fakeProc(t, map[int]string{
		4242: "/dev/ttyUSB0",
		4300: "/dev/null",
	})
	r, killed := newTestReclaimer(t, root)

	require.NoError(t, r.Reclaim("/dev/ttyUSB0"))
	assert.Equal(t, []int{4242}, *killed)
}

func TestReclaimNoHolderFound(t *testing.T) {
	root := fakeProc(t, map[int]string{
		4300: "/dev/null",
	})
	r, killed := newTestReclaimer(t, root)

	err := r.Reclaim("/dev/ttyUSB0")
	require.Error(t, err)
	assert.Empty(t, *killed)
}

func TestReclaimSkipsSelf(t *testing.T) {
	root := fakeProc(t, map[int]string{
		os.Getpid(): "/dev/ttyUSB0",
	})
	r, killed := newTestReclaimer(t, root)

	err := r.Reclaim("/dev/ttyUSB0")
	require.Error(t, err)
	assert.Empty(t, *killed)
}

func TestReclaimMissingProcRoot(t *testing.T) {
	r, _ := newTestReclaimer(t, "/nonexistent-proc-root")
	require.Error(t, r.Reclaim("/dev/ttyUSB0"))
}

func TestNopReclaimerAlwaysFails(t *testing.T) {
	require.Error(t, NopReclaimer{}.Reclaim("/dev/ttyUSB0"))
}
