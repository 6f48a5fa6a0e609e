package report

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/dlsan/internal/engine"
)

var constructPattern = regexp.MustCompile(`Construct: (\d+)`)

// FilterOptions controls Filter output.
type FilterOptions struct {
	// Color wraps the status tag in ANSI colors.
	Color bool
}

// FilterResult counts the distinct lines Filter printed.
type FilterResult struct {
	Passed int
	Warned int
	Failed int
}

// Filter reads a verdict log and prints its distinct verdict lines grouped
// by status: pass lines sorted, then warn lines sorted, then fail lines
// ordered by construct site. Scope header and summary lines are skipped.
//
// Each line is printed as "[<status>] <rest of the line>".
func Filter(r io.Reader, w io.Writer, opts FilterOptions) (FilterResult, error) {
	groups := map[engine.Status]map[string]struct{}{
		engine.StatusPass: {},
		engine.StatusWarn: {},
		engine.StatusFail: {},
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		for status, set := range groups {
			if rest, ok := strings.CutPrefix(line, string(status)+": "); ok {
				set[rest] = struct{}{}
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return FilterResult{}, fmt.Errorf("read verdict log: %w", err)
	}

	pass := sortedKeys(groups[engine.StatusPass])
	warn := sortedKeys(groups[engine.StatusWarn])
	fail := sortedKeys(groups[engine.StatusFail])
	slices.SortStableFunc(fail, func(a, b string) int {
		return cmp.Compare(constructSite(a), constructSite(b))
	})

	for _, g := range []struct {
		status engine.Status
		lines  []string
	}{
		{engine.StatusPass, pass},
		{engine.StatusWarn, warn},
		{engine.StatusFail, fail},
	} {
		tag := statusTag(g.status, opts.Color)
		for _, line := range g.lines {
			if _, err := fmt.Fprintf(w, "[%s] %s\n", tag, line); err != nil {
				return FilterResult{}, err
			}
		}
	}

	return FilterResult{Passed: len(pass), Warned: len(warn), Failed: len(fail)}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// constructSite extracts the construct line; lines without one sort first.
func constructSite(line string) int {
	m := constructPattern.FindStringSubmatch(line)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

func statusTag(s engine.Status, color bool) string {
	if !color {
		return string(s)
	}
	code := map[engine.Status]string{
		engine.StatusPass: "32",
		engine.StatusWarn: "33",
		engine.StatusFail: "31",
	}[s]
	return "\033[" + code + ";1m" + string(s) + "\033[0m"
}
