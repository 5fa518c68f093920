package alpha_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/alpha"
)

func collect(t *testing.T, n alpha.Namer, limit int) []string {
	t.Helper()
	var list []string
	for i := 0; i < limit; i++ {
		str, err := n.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		list = append(list, str)
	}
	return list
}

func TestChain(t *testing.T) {
	tests := []struct {
		Name  string
		Namer alpha.Namer
		Want  []string
	}{
		{
			Name:  "numbers",
			Namer: alpha.NewNumberString(1),
			Want:  []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"},
		},
		{
			Name:  "ranges",
			Namer: alpha.Chain(alpha.Create('a', 'b', 1), alpha.Create('0', '2', 1)),
			Want:  []string{"a0", "a1", "a2", "b0", "b1", "b2"},
		},
		{
			Name:  "step",
			Namer: alpha.Chain(alpha.Create('a', 'f', 2)),
			Want:  []string{"a", "c", "e"},
		},
		{
			Name:  "empty",
			Namer: alpha.NewLowerString(0),
		},
	}
	for _, c := range tests {
		t.Run(c.Name, func(t *testing.T) {
			got := collect(t, c.Namer, 100)
			assert.Equal(t, c.Want, got)
		})
	}
}

func TestLowerString(t *testing.T) {
	n := alpha.NewLowerString(2)
	got := collect(t, n, 1000)
	require.Len(t, got, 26*26)
	assert.Equal(t, "aa", got[0])
	assert.Equal(t, "ab", got[1])
	assert.Equal(t, "ba", got[26])
	assert.Equal(t, "zz", got[len(got)-1])

	n.Reset()
	str, err := n.Next()
	require.NoError(t, err)
	assert.Equal(t, "aa", str)
}

func TestCompose(t *testing.T) {
	n := alpha.Compose(
		alpha.Chain(alpha.Create('a', 'b', 1)),
		alpha.Chain(alpha.Create('0', '1', 1)),
	)
	got := collect(t, n, 100)
	assert.Equal(t, []string{"a-0", "a-1", "b-0", "b-1"}, got)

	_, err := n.Next()
	assert.ErrorIs(t, err, io.EOF)

	n.Reset()
	got = collect(t, n, 2)
	assert.Equal(t, []string{"a-0", "a-1"}, got)
}
