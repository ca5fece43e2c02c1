package shm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_OpenOrCreateAt_FirstOpenerOwnsAndZeroes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.bin")

	r, err := OpenOrCreateAt(path, 4096)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.IsOwner())
	require.EqualValues(t, 4096, r.Size())
	for _, b := range r.Bytes() {
		require.Zero(t, b)
	}
}

func Test_OpenOrCreateAt_SecondOpenerAttachesWithoutZeroing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.bin")

	r1, err := OpenOrCreateAt(path, 4096)
	require.NoError(t, err)
	r1.Bytes()[10] = 0xAB
	require.NoError(t, r1.Close())

	r2, err := OpenOrCreateAt(path, 4096)
	require.NoError(t, err)
	defer r2.Close()

	require.False(t, r2.IsOwner())
	require.EqualValues(t, 0xAB, r2.Bytes()[10])
}

func Test_OpenOrCreateAt_NeverShrinks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.bin")

	r1, err := OpenOrCreateAt(path, 8192)
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := OpenOrCreateAt(path, 4096)
	require.NoError(t, err)
	defer r2.Close()

	require.EqualValues(t, 8192, r2.Size())
}

func Test_OpenExisting_FailsWhenMissing(t *testing.T) {
	_, err := OpenExisting("nonexistent-topic-xyz")
	require.ErrorIs(t, err, ErrRegionMissing)
}
