// Package checksum computes migration checksums compatible with Flyway's
// flyway_schema_history.checksum column.
//
// Flyway reads a script line by line, drops the line terminators (\n, \r\n or
// a lone \r), strips a UTF-8 byte order mark from the first line and feeds
// every line into a single CRC32 (IEEE). The resulting unsigned value is stored
// as a signed 32-bit integer. Scripts that differ only in line endings
// therefore share a checksum.
package checksum

import (
	"bufio"
	"bytes"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Compute returns the Flyway checksum of content.
func Compute(content []byte) int32 {
	content = bytes.TrimPrefix(content, bom)

	h := crc32.NewIEEE()
	start := 0
	for i, b := range content {
		if b == '\r' || b == '\n' {
			_, _ = h.Write(content[start:i])
			start = i + 1
		}
	}
	_, _ = h.Write(content[start:])

	return int32(h.Sum32()) //nolint:gosec // reinterpreting the bits is the point
}

// ComputeReader reads r until EOF and returns its Flyway checksum.
func ComputeReader(r io.Reader) (int32, error) {
	content, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read script content")
	}

	return Compute(content), nil
}
