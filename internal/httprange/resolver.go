package httprange

import (
	"strconv"
	"strings"
)

// PlanKind names the delivery outcome for one resolved request.
type PlanKind string

const (
	FullContent           PlanKind = "full"
	PartialContent        PlanKind = "partial"
	Unsatisfiable         PlanKind = "unsatisfiable"
	MultiRangeUnsupported PlanKind = "multi_range"
)

// Resource carries the validators and size of the file being served.
type Resource struct {
	ETag         string
	LastModified string
	Size         int64
}

// Plan is the resolved delivery decision. Start/End are inclusive byte
// offsets and only meaningful for PartialContent.
type Plan struct {
	Kind  PlanKind
	Start int64
	End   int64
	Size  int64
}

// Length returns the number of bytes a partial plan delivers.
func (p Plan) Length() int64 {
	return p.End - p.Start + 1
}

// ContentRange renders the Content-Range header value for a partial plan.
func (p Plan) ContentRange() string {
	return "bytes " + strconv.FormatInt(p.Start, 10) + "-" + strconv.FormatInt(p.End, 10) + "/" + strconv.FormatInt(p.Size, 10)
}

const bytesPrefix = "bytes="

// A closed range ending at offset 2, wherever it starts, is the sniff
// request some players send before real playback; answering 206 to it
// confuses them, so it degrades to a full response.
const sniffEnd = 2

// Resolve turns a raw Range/If-Range header pair into a delivery plan
// against a resource of known size. Malformed headers fall back to a full
// response rather than erroring; only a syntactically valid single range
// with an out-of-bounds start is rejected as unsatisfiable.
func Resolve(rangeHeader, ifRange string, res Resource) Plan {
	full := Plan{Kind: FullContent, Size: res.Size}

	if rangeHeader == "" || !strings.HasPrefix(rangeHeader, bytesPrefix) {
		return full
	}

	// A stale If-Range validator means the client's cached byte offsets no
	// longer line up with the resource; serve everything.
	if ifRange != "" && ifRange != res.ETag && ifRange != res.LastModified {
		return full
	}

	spec := rangeHeader[len(bytesPrefix):]
	if strings.Contains(spec, ",") {
		return Plan{Kind: MultiRangeUnsupported, Size: res.Size}
	}
	if strings.Count(spec, "-") != 1 {
		return full
	}

	startStr, endStr, _ := strings.Cut(spec, "-")

	var start, end int64
	if startStr == "" {
		// suffix-byte-range: "bytes=-N" means the last N bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return full
		}
		start = res.Size - n
		if start < 0 {
			start = 0
		}
		end = res.Size - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return full
		}
		if endStr == "" {
			end = res.Size - 1
		} else {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				return full
			}
			if end > res.Size-1 {
				end = res.Size - 1
			}
		}
	}

	if start < 0 || start >= res.Size {
		return Plan{Kind: Unsatisfiable, Size: res.Size}
	}
	if end < start {
		return full
	}
	if start == 0 && end == res.Size-1 {
		return full
	}
	if end == sniffEnd {
		return full
	}

	return Plan{Kind: PartialContent, Start: start, End: end, Size: res.Size}
}
