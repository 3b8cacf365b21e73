package transform_test

import (
	"testing"

	"github.com/grailbio/copybara/glob"
	"github.com/grailbio/copybara/transform"
	"github.com/stretchr/testify/require"
)

func TestConvertEncodingIdentityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "hello world")
	g, err := glob.Leaf([]string{"f.txt"}, nil)
	require.NoError(t, err)

	c, err := transform.ConvertEncoding("UTF-8", "UTF-8", g)
	require.NoError(t, err)
	outcome, err := c.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, transform.StatusSuccess, outcome.Status)
	require.Equal(t, "hello world", readFile(t, dir, "f.txt"))

	rev, err := c.Reverse()
	require.NoError(t, err)
	_, err = rev.Transform(newWork(dir))
	require.NoError(t, err)
	require.Equal(t, "hello world", readFile(t, dir, "f.txt"))
}

func TestConvertEncodingUnknownCharset(t *testing.T) {
	g, err := glob.Leaf([]string{"*"}, nil)
	require.NoError(t, err)
	_, err = transform.ConvertEncoding("not-a-charset", "UTF-8", g)
	require.Error(t, err)
}
