package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer_TailAfterOverflow(t *testing.T) {
	const cap = 8
	b := New(cap)

	n, err := b.Write([]byte("0123456789ABCDEF")) // 16 bytes, N > cap
	require.NoError(t, err)
	require.Equal(t, 16, n)

	require.Equal(t, cap, b.Len())
	require.Equal(t, int64(16), b.TotalWritten())
	require.True(t, b.WasTruncated())
	require.Equal(t, "89ABCDEF", b.String())
}

func TestBuffer_NoTruncationWhenUnderCap(t *testing.T) {
	b := New(32)
	_, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", b.String())
	require.False(t, b.WasTruncated())
	require.Equal(t, int64(5), b.TotalWritten())
}

func TestBuffer_MultipleWritesAccumulateThenEvict(t *testing.T) {
	b := New(10)
	_, _ = b.Write([]byte("12345"))
	_, _ = b.Write([]byte("67890"))
	_, _ = b.Write([]byte("ABCDE"))

	require.Equal(t, 10, b.Len())
	require.Equal(t, int64(15), b.TotalWritten())
	require.True(t, b.WasTruncated())
	require.Equal(t, "67890ABCDE", b.String())
}

func TestBuffer_WriteLargerThanCapKeepsOnlyTail(t *testing.T) {
	b := New(4)
	_, _ = b.Write([]byte("abcdefgh"))
	require.Equal(t, "efgh", b.String())
}

func TestBuffer_ZeroCapDiscardsAllButCountsTotal(t *testing.T) {
	b := New(0)
	_, _ = b.Write([]byte("abc"))
	require.Equal(t, 0, b.Len())
	require.Equal(t, int64(3), b.TotalWritten())
}
