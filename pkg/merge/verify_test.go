package merge

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/jarmerge/pkg/archive"
	"github.com/odvcencio/jarmerge/pkg/sideonly"
)

func TestVerifyAcceptsMergeOutput(t *testing.T) {
	entries, _ := mergeSample(t, Options{})

	var expected []archive.Entry
	for _, e := range entries {
		if !sideonly.IsMarker(e.Path) {
			expected = append(expected, e)
		}
	}
	out, err := archive.New("merged.jar", entries)
	require.NoError(t, err)
	ref, err := archive.New("expected.jar", expected)
	require.NoError(t, err)

	r := Verify(out, ref)
	assert.True(t, r.OK(), r.String())
	assert.Equal(t, "ok", r.String())
}

func TestVerifyReportsDifferences(t *testing.T) {
	c, s := sampleInputs(t)
	entries, _, err := Merge(context.Background(), c.archive(t, "client.jar"), s.archive(t, "server.jar"), Options{})
	require.NoError(t, err)

	ref := files{
		"a.txt":           []byte("server text!"),
		"missing.txt":     []byte("x"),
		"assets/logo.png": c["assets/logo.png"],
	}.archive(t, "expected.jar")

	// Re-encode the output with a directory entry the merger would never write.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("assets/")
	require.NoError(t, err)
	for _, e := range entries {
		w, err := zw.Create(e.Path)
		require.NoError(t, err)
		_, err = w.Write(e.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	out, err := archive.Read("merged.jar", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	r := Verify(out, ref)
	assert.False(t, r.OK())
	assert.Equal(t, []string{"missing.txt"}, r.Missing)
	assert.Contains(t, r.Unexpected, "demo/Block.class")
	assert.NotContains(t, r.Unexpected, sideonly.Paths()[0])
	assert.Equal(t, []string{"a.txt"}, r.Mismatched)
	assert.Equal(t, []string{"assets/"}, r.Directories)
	assert.Contains(t, r.String(), "missing missing.txt")
}
