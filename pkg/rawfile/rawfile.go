// Package rawfile opens source files for the inspector, reader and store
// builder. Paths ending in .gz are decompressed transparently.
package rawfile

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

// IsGzip reports whether the path names a gzip-compressed file
func IsGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}

// BaseName returns the file's base name with any .gz and format extensions
// stripped, for deriving store table names
func BaseName(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".gz")
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// Size returns the on-disk byte size of the file
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFileNotFound, "cannot stat file").
			WithDetail("path", path)
	}
	return info.Size(), nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// Open opens the file for sequential reading, decompressing gzip on the fly
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFileNotFound, "cannot open file").
			WithDetail("path", path)
	}

	if !IsGzip(path) {
		return file, nil
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFileNotFound, "cannot read gzip header").
			WithDetail("path", path)
	}
	return &gzipReadCloser{gz: gz, file: file}, nil
}
