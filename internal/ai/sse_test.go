package ai

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSSEReaderJoinsDataLinesAndSkipsComments(t *testing.T) {
	r := newSSEReader(strings.NewReader(": keepalive\n\nevent: x\ndata: a\ndata: b\n\ndata: tail"))

	ev, err := r.next()
	require.NoError(t, err)
	require.Equal(t, "x", ev.Event)
	require.Equal(t, "a\nb", ev.Data)

	ev, err = r.next()
	require.NoError(t, err)
	require.Equal(t, "tail", ev.Data)

	_, err = r.next()
	require.ErrorIs(t, err, io.EOF)
}
