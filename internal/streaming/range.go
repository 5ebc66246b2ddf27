package streaming

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrRangeNotSatisfiable is returned for Range headers this server does not
// serve: anything other than a single bytes=<start>-[<end>] inside the file.
var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// ByteRange is an inclusive byte interval within a file.
type ByteRange struct {
	Start int64
	End   int64
}

// Length is the number of bytes covered by the range.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange formats the range for a Content-Range header.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ParseRange parses a Range header against a file of the given size. Only a
// single range with an explicit start is accepted. A missing end means the
// rest of the file. An end past the file is clamped to the last byte, even
// one that does not fit in an int64.
func ParseRange(header string, size int64) (ByteRange, error) {
	rangeSet, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: unsupported unit", ErrRangeNotSatisfiable)
	}
	if strings.Contains(rangeSet, ",") {
		return ByteRange{}, fmt.Errorf("%w: multiple ranges", ErrRangeNotSatisfiable)
	}

	startText, endText, ok := strings.Cut(strings.TrimSpace(rangeSet), "-")
	if !ok || startText == "" {
		return ByteRange{}, fmt.Errorf("%w: start offset required", ErrRangeNotSatisfiable)
	}

	start, err := parseOffset(startText)
	if err != nil {
		return ByteRange{}, err
	}
	if start >= size {
		return ByteRange{}, fmt.Errorf("%w: start %d beyond size %d", ErrRangeNotSatisfiable, start, size)
	}

	end := size - 1
	if endText != "" {
		end, err = parseOffset(endText)
		switch {
		case errors.Is(err, strconv.ErrRange):
			// too large for int64, so certainly past the last byte
			end = size - 1
		case err != nil:
			return ByteRange{}, err
		}
		if end < start {
			return ByteRange{}, fmt.Errorf("%w: end %d before start %d", ErrRangeNotSatisfiable, end, start)
		}
		if end >= size {
			end = size - 1
		}
	}

	return ByteRange{Start: start, End: end}, nil
}

// parseOffset accepts decimal digits only. An offset that overflows int64
// wraps both ErrRangeNotSatisfiable and strconv.ErrRange.
func parseOffset(s string) (int64, error) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: invalid offset %q", ErrRangeNotSatisfiable, s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: offset %q: %w", ErrRangeNotSatisfiable, s, strconv.ErrRange)
	}
	return n, nil
}
