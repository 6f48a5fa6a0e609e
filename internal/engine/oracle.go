package engine

// oracle answers region queries against a DomProvider that it owns for the
// lifetime of the scope.
type oracle struct {
	provider DomProvider
}

// inDominantRegion reports whether dst lies in the dominant region of src:
// same block, or src dominates dst, or src post-dominates dst.
//
// Same-block membership ignores instruction order within the block.
func (o *oracle) inDominantRegion(dst, src Node, site Site) (bool, error) {
	dstBlock, srcBlock := dst.Block(), src.Block()
	if isNil(dstBlock) || isNil(srcBlock) {
		return false, newFatal(ErrCodeCrossFunction, site,
			"dominance query with a detached node (dst=%d, src=%d)", dst.ID(), src.ID())
	}

	fn := dstBlock.Func()
	if fn != srcBlock.Func() {
		return false, newFatal(ErrCodeCrossFunction, site,
			"dominance query spans functions %q and %q", fn.Name(), srcBlock.Func().Name())
	}

	o.provider.Recompute(fn)

	return dstBlock == srcBlock ||
		o.provider.Dominates(src, dst) ||
		o.provider.PostDominates(src, dst), nil
}

// inRegionOfPosition is inDominantRegion(pos, src) where pos may be a whole
// block. A block is represented by a placeholder that only exists for the
// duration of the query.
func (o *oracle) inRegionOfPosition(pos any, src Node, site Site) (inRegion, ok bool, err error) {
	n, release, ok := asPosition(pos)
	if !ok {
		return false, false, nil
	}
	defer release()

	inRegion, err = o.inDominantRegion(n, src, site)
	return inRegion, true, err
}

func (o *oracle) release() {
	if o.provider != nil {
		o.provider.Release()
		o.provider = nil
	}
}
