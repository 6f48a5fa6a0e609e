package instrument

import (
	"slices"
	"strconv"
)

// edit replaces src[start:end] with text. An insertion has start == end.
type edit struct {
	start, end uint32
	text       string
}

// editSet collects edits, dropping exact duplicates.
type editSet struct {
	edits []edit
	seen  map[string]bool
}

func newEditSet() *editSet {
	return &editSet{seen: make(map[string]bool)}
}

func (s *editSet) insert(at uint32, text string) {
	s.add(edit{start: at, end: at, text: text})
}

func (s *editSet) replace(start, end uint32, text string) {
	s.add(edit{start: start, end: end, text: text})
}

func (s *editSet) add(e edit) {
	key := strconv.FormatUint(uint64(e.start), 10) + "\x00" + e.text
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.edits = append(s.edits, e)
}

func (s *editSet) len() int {
	return len(s.edits)
}

// apply rewrites src back-to-front. Edits at the same offset keep their
// collection order when sorted, so the one collected last ends up first in
// the output. An edit overlapping one already applied is skipped and
// returned.
func (s *editSet) apply(src []byte) ([]byte, []edit) {
	sorted := slices.Clone(s.edits)
	slices.SortStableFunc(sorted, func(a, b edit) int {
		return int(b.start) - int(a.start)
	})

	out := slices.Clone(src)
	limit := uint32(len(src))
	var skipped []edit
	for _, e := range sorted {
		if e.end > limit || e.start > e.end {
			skipped = append(skipped, e)
			continue
		}
		out = slices.Replace(out, int(e.start), int(e.end), []byte(e.text)...)
		limit = e.start
	}
	return out, skipped
}
