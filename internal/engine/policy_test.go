package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedKind(t *testing.T) {
	tests := []struct {
		name     string
		prov     Provenance
		expected UpdateKind
	}{
		{"create, nothing replaced", Provenance{ConstructKind: ConstructCreate, ReplacedInRegion: true}, UpdatePreserve},
		{"create, zero replaced ignores flag", Provenance{ConstructKind: ConstructCreate, ReplacedInRegion: false}, UpdatePreserve},
		{"create, one in region", Provenance{ConstructKind: ConstructCreate, ReplacedCount: 1, ReplacedInRegion: true}, UpdatePreserve},
		{"create, one out of region", Provenance{ConstructKind: ConstructCreate, ReplacedCount: 1}, UpdateDrop},
		{"create, two out of region", Provenance{ConstructKind: ConstructCreate, ReplacedCount: 2}, UpdateMerge},
		{"create, three in region", Provenance{ConstructKind: ConstructCreate, ReplacedCount: 3, ReplacedInRegion: true}, UpdatePreserve},

		{"move in region", Provenance{ConstructKind: ConstructMove, ReplacedCount: 1, ReplacedInRegion: true}, UpdatePreserve},
		{"move out of region", Provenance{ConstructKind: ConstructMove, ReplacedCount: 1}, UpdateDrop},
		{"move then replace out of region", Provenance{ConstructKind: ConstructMove, ReplacedCount: 2}, UpdateMerge},

		{"clone inserted in region", Provenance{ConstructKind: ConstructClone, ReplacedInRegion: true, InsertedInRegion: true}, UpdatePreserve},
		{"clone inserted out of region", Provenance{ConstructKind: ConstructClone, ReplacedInRegion: true}, UpdateDrop},
		{"clone, one replaced, both in region", Provenance{ConstructKind: ConstructClone, ReplacedCount: 1, ReplacedInRegion: true, InsertedInRegion: true}, UpdatePreserve},
		{"clone, one replaced, inserted out of region", Provenance{ConstructKind: ConstructClone, ReplacedCount: 1, ReplacedInRegion: true}, UpdateDrop},
		{"clone, one replaced out of region", Provenance{ConstructKind: ConstructClone, ReplacedCount: 1, InsertedInRegion: true}, UpdateDrop},
		{"clone, two replaced, inserted out of region", Provenance{ConstructKind: ConstructClone, ReplacedCount: 2, ReplacedInRegion: true}, UpdateMerge},

		{"untracked", Provenance{ConstructKind: ConstructUntracked, ReplacedCount: 1, ReplacedInRegion: true}, UpdateAny},
		{"untracked out of region", Provenance{ConstructKind: ConstructUntracked, ReplacedCount: 2}, UpdateAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpectedKind(tt.prov))
		})
	}
}

func TestExpectedKind_NeverNone(t *testing.T) {
	kinds := []ConstructKind{ConstructUntracked, ConstructCreate, ConstructClone, ConstructMove}
	for _, k := range kinds {
		for count := 0; count < 4; count++ {
			for _, rf := range []bool{true, false} {
				for _, inf := range []bool{true, false} {
					got := ExpectedKind(Provenance{
						ConstructKind:    k,
						ReplacedCount:    count,
						ReplacedInRegion: rf,
						InsertedInRegion: inf,
					})
					assert.NotEqual(t, UpdateNone, got, "kind=%s count=%d", k, count)
				}
			}
		}
	}
}
