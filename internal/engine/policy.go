package engine

// ExpectedKind maps a node's provenance to the debug-location disposition the
// policy requires.
//
// Preserving is sound only while the destination stays inside the dominant
// region of every source it displaces. With one out-of-region source the
// location is dropped; with two or more it is merged so that no single
// source's location is favored.
func ExpectedKind(p Provenance) UpdateKind {
	switch p.ConstructKind {
	case ConstructCreate, ConstructMove:
		return bySources(p.ReplacedCount, p.ReplacedInRegion)
	case ConstructClone:
		if p.ReplacedCount == 0 {
			if p.InsertedInRegion {
				return UpdatePreserve
			}
			return UpdateDrop
		}
		return bySources(p.ReplacedCount, p.ReplacedInRegion && p.InsertedInRegion)
	default: // ConstructUntracked
		return UpdateAny
	}
}

func bySources(replaced int, inRegion bool) UpdateKind {
	switch {
	case replaced == 0, inRegion:
		return UpdatePreserve
	case replaced == 1:
		return UpdateDrop
	default:
		return UpdateMerge
	}
}
