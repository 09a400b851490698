package kerr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesCode(t *testing.T) {
	err := Wrap(NotFound, "open /doc", io.EOF)
	require.True(t, errors.Is(err, NotFound))
	require.False(t, errors.Is(err, NoSpace))
}

func TestUnwrapReachesCause(t *testing.T) {
	err := Wrap(Error, "read sector", io.ErrUnexpectedEOF)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestErrnoIsNegative(t *testing.T) {
	require.Equal(t, -1, Error.Errno())
	require.Equal(t, -7, OutOfRange.Errno())
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, Code(0), CodeOf(nil))
	require.Equal(t, NotMounted, CodeOf(New(NotMounted, "no mount covers /x")))
	require.Equal(t, Error, CodeOf(errors.New("plain error")))
}
