package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditSet_Apply(t *testing.T) {
	s := newEditSet()
	s.insert(0, "<")
	s.replace(2, 5, "XYZ!")
	s.insert(7, ">")

	out, skipped := s.apply([]byte("0123456"))
	assert.Empty(t, skipped)
	assert.Equal(t, "<01XYZ!56>", string(out))
}

func TestEditSet_Dedup(t *testing.T) {
	s := newEditSet()
	s.insert(1, "x")
	s.insert(1, "x")
	s.insert(2, "x")

	assert.Equal(t, 2, s.len())
	out, _ := s.apply([]byte("abc"))
	assert.Equal(t, "axbxc", string(out))
}

func TestEditSet_SameOffsetOrder(t *testing.T) {
	s := newEditSet()
	s.insert(1, "first")
	s.insert(1, "second")

	out, _ := s.apply([]byte("ab"))
	assert.Equal(t, "asecondfirstb", string(out))
}

func TestEditSet_OverlapSkipped(t *testing.T) {
	s := newEditSet()
	s.replace(0, 4, "AAAA")
	s.insert(2, "x")

	out, skipped := s.apply([]byte("abcdef"))
	assert.Equal(t, "abxcdef", string(out))
	assert.Equal(t, []edit{{start: 0, end: 4, text: "AAAA"}}, skipped)
}
