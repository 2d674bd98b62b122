package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseRanges expands a freeze range spec such as "1-10,90-100" into the
// sorted set of 1-based atom indices it denotes. Single indices and
// inclusive ranges may be mixed: "3,7-9" yields {3,7,8,9}.
func ParseRanges(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty entry in freeze spec %q", ErrInvalid, spec)
		}
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for i := lo; i <= hi; i++ {
			seen[i] = true
		}
	}
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(part string) (lo, hi int, err error) {
	before, after, found := strings.Cut(part, "-")
	lo, err = strconv.Atoi(strings.TrimSpace(before))
	if err != nil {
		return 0, 0, fmt.Errorf("bad freeze entry %q", part)
	}
	hi = lo
	if found {
		hi, err = strconv.Atoi(strings.TrimSpace(after))
		if err != nil {
			return 0, 0, fmt.Errorf("bad freeze range %q", part)
		}
	}
	if lo < 1 {
		return 0, 0, fmt.Errorf("freeze indices are 1-based, got %d", lo)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("freeze range %q is inverted", part)
	}
	return lo, hi, nil
}
