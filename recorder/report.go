package recorder

import (
	"slices"
	"strings"
)

// DefaultPageSize is the number of ids per report page when none is configured.
const DefaultPageSize = 200

// Report is the final result of a session.
type Report struct {
	Target    DocumentRef
	Owner     Actor
	Cause     Cause
	StoppedBy *Actor
	IDs       []string   // descending numeric order
	Pages     [][]string // IDs chunked by page size
}

// BuildReport sorts ids by descending numeric value and chunks them into pages.
func BuildReport(ids []string, pageSize int) Report {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	sorted := slices.Clone(ids)
	SortDescending(sorted)
	var pages [][]string
	for start := 0; start < len(sorted); start += pageSize {
		end := min(start+pageSize, len(sorted))
		pages = append(pages, sorted[start:end])
	}
	return Report{IDs: sorted, Pages: pages}
}

// Total returns the number of ids in the report.
func (r Report) Total() int { return len(r.IDs) }

// Empty reports whether no ids were recorded.
func (r Report) Empty() bool { return len(r.IDs) == 0 }

// Paginated reports whether the ids span more than one page.
func (r Report) Paginated() bool { return len(r.Pages) > 1 }

// PageText returns page i as space separated ids.
func (r Report) PageText(i int) string {
	if i < 0 || i >= len(r.Pages) {
		return ""
	}
	return strings.Join(r.Pages[i], " ")
}

// SortDescending orders digit strings by numeric value, largest first. It
// compares by magnitude rather than parsing, so ids of any length are safe.
func SortDescending(ids []string) {
	slices.SortFunc(ids, func(a, b string) int { return compareNumeric(b, a) })
}

func compareNumeric(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// same value, different zero padding ("012" vs "12")
	return strings.Compare(a, b)
}
