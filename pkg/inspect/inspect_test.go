package inspect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInspect(t *testing.T) {
	path := writeFile(t, "deaths.csv",
		"fname,byear,death_age\nJOSH,1920,70\nJOSHUA,1921,75\nMARY,1922,80\n")

	info, err := Inspect(path, 2)
	require.NoError(t, err)

	assert.Equal(t, path, info.Path)
	assert.Equal(t, int64(63), info.SizeBytes)
	assert.Equal(t, int64(4), info.Lines)
	assert.Equal(t, []string{"fname,byear,death_age", "JOSH,1920,70"}, info.Head)
}

func TestInspectHeadLargerThanFile(t *testing.T) {
	path := writeFile(t, "tiny.csv", "fname\nJOSH\n")

	info, err := Inspect(path, 100)
	require.NoError(t, err)

	assert.Equal(t, int64(2), info.Lines)
	assert.Equal(t, []string{"fname", "JOSH"}, info.Head)
}

func TestInspectNoTrailingNewline(t *testing.T) {
	path := writeFile(t, "deaths.csv",
		"fname,byear\nJOSH,1920\nMARY,1922")

	info, err := Inspect(path, 1)
	require.NoError(t, err)

	assert.Equal(t, int64(3), info.Lines)
	assert.Equal(t, []string{"fname,byear"}, info.Head)
}

func TestInspectDefaultHead(t *testing.T) {
	path := writeFile(t, "deaths.csv",
		"a\nb\nc\nd\ne\nf\ng\n")

	info, err := Inspect(path, 0)
	require.NoError(t, err)

	assert.Len(t, info.Head, DefaultHeadLines)
	assert.Equal(t, int64(7), info.Lines)
}

func TestInspectEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", "")

	info, err := Inspect(path, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(0), info.Lines)
	assert.Empty(t, info.Head)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "nope.csv"), 3)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFileNotFound))
}

func TestInspectGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deaths.csv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("fname,byear\nJOSH,1920\nMARY,1922\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	info, err := Inspect(path, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(3), info.Lines)
	assert.Equal(t, []string{"fname,byear", "JOSH,1920"}, info.Head)
	// Size reports the compressed on-disk artifact
	assert.Less(t, info.SizeBytes, int64(100))
	assert.Greater(t, info.SizeBytes, int64(0))
}
