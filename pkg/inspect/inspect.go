// Package inspect reports the shape of a large tabular file without
// materializing it: byte size, line count, and a small head sample.
package inspect

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/berkeley-demography/bigtab/pkg/errors"
	"github.com/berkeley-demography/bigtab/pkg/logger"
	"github.com/berkeley-demography/bigtab/pkg/rawfile"
)

// DefaultHeadLines is the head sample size when the caller does not choose one
const DefaultHeadLines = 5

// blockSize is the buffer used for newline counting
const blockSize = 64 * 1024

// Info describes a file's shape. Lines counts every line including the
// header; Head holds the first lines verbatim, without trailing newlines.
type Info struct {
	Path      string   `json:"path"`
	SizeBytes int64    `json:"size_bytes"`
	Lines     int64    `json:"lines"`
	Head      []string `json:"head"`
}

// Inspect reads the file once: the first headLines lines are kept, the rest
// of the stream is only scanned for newlines. Memory use is bounded by the
// head sample plus one fixed block. A missing or unreadable path is an
// error; there is no partial result.
func Inspect(path string, headLines int) (*Info, error) {
	if headLines <= 0 {
		headLines = DefaultHeadLines
	}

	size, err := rawfile.Size(path)
	if err != nil {
		return nil, err
	}

	src, err := rawfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	info := &Info{Path: path, SizeBytes: size, Head: make([]string, 0, headLines)}

	r := bufio.NewReaderSize(src, blockSize)

	// Head sample, line at a time
	for len(info.Head) < headLines {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			info.Lines++
			info.Head = append(info.Head, strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			return nil, wrapRead(err, path)
		}
	}

	// Count remaining newlines block-wise
	buf := make([]byte, blockSize)
	trailing := false
	for {
		n, err := r.Read(buf)
		if n > 0 {
			info.Lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
			trailing = buf[n-1] != '\n'
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapRead(err, path)
		}
	}
	if trailing {
		// Last line has no terminator but still counts
		info.Lines++
	}

	logger.Debug("inspected file",
		zap.String("path", path),
		zap.Int64("size_bytes", info.SizeBytes),
		zap.Int64("lines", info.Lines))

	return info, nil
}

func wrapRead(err error, path string) error {
	return errors.Wrap(err, errors.ErrorTypeFileNotFound, "read failed").
		WithDetail("path", path)
}
