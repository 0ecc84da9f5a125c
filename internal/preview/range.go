package preview

import (
	"strconv"
	"strings"
)

// byteRange is an inclusive span of a file's bytes.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseRange interprets a Range header against the file size. Only the
// single "bytes=start-end" form is supported, with an omitted end meaning
// the end of the file. Anything malformed or unsatisfiable reports ok=false
// and the caller falls back to a full 200 response, prioritizing playback
// continuity over strict range conformance.
func parseRange(header string, size int64) (byteRange, bool) {
	header = strings.TrimSpace(header)
	if header == "" || size <= 0 {
		return byteRange{}, false
	}
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return byteRange{}, false
	}
	startText, endText, found := strings.Cut(spec, "-")
	if !found {
		return byteRange{}, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startText), 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, false
	}

	end := size - 1
	if trimmed := strings.TrimSpace(endText); trimmed != "" {
		end, err = strconv.ParseInt(trimmed, 10, 64)
		if err != nil || end < start {
			return byteRange{}, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return byteRange{start: start, end: end}, true
}
