package generation

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dice/pkg/types"
)

func testAddr() types.DiceAddress {
	var a types.DiceAddress
	for i := range a {
		a[i] = byte(i + 1)
	}
	return a
}

func TestFile_IncrementsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	addr := testAddr()

	for want := uint64(0); want < 3; want++ {
		f, err := Open(dir, addr)
		require.NoError(t, err)
		got, err := f.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		require.NoError(t, f.Close())
	}

	data, err := os.ReadFile(f0Path(t, dir, addr))
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(data))
}

func f0Path(t *testing.T, dir string, addr types.DiceAddress) string {
	t.Helper()
	f, err := Open(dir, addr)
	require.NoError(t, err)
	defer f.Close()
	return f.Path()
}

func TestFile_LockedByAnotherHolder(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(dir, testAddr())
	require.NoError(t, err)
	defer f.Close()

	_, err = Open(dir, testAddr())
	assert.ErrorIs(t, err, ErrLocked)
}

func TestFile_Corrupt(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(dir, testAddr())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, os.WriteFile(f.Path(), []byte("not-a-number"), 0o600))
	_, err = f.Next()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFile_Closed(t *testing.T) {
	f, err := Open(t.TempDir(), testAddr())
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Next()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemory(t *testing.T) {
	m := NewMemory(5)
	v, _ := m.Next()
	assert.Equal(t, uint64(5), v)
	v, _ = m.Next()
	assert.Equal(t, uint64(6), v)
}
