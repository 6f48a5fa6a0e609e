package engine

// The tracking entry points below are called by the instrumented
// transformation. Arguments typed `any` accept whatever the transformation
// holds at the call site; the checker decides whether it resolves to a Node
// (or, for positions, a Block).

// TrackConstruct records that dst was created, cloned or moved.
//
// For ConstructClone, extra is the origin node. For ConstructMove, extra is
// the node or block dst is being moved to and the event must fire before the
// move happens; the move counts as replacing one node. For ConstructCreate,
// extra is ignored.
//
// A node that already has a record keeps its original construct kind; a
// repeated move still folds its dominance result into the record.
func (c *Checker) TrackConstruct(dst, extra any, kind ConstructKind, site Site) error {
	if c.closed {
		return ErrScopeClosed
	}

	n, ok := asNode(dst)
	if !ok {
		return c.abort(newFatal(ErrCodeNotANode, site, "construct destination %T is not a node", dst))
	}

	seq := c.clock.Next()
	c.logger.Debug("track construct",
		"seq", seq, "kind", kind, "node", n.ID(), "dst", site.Dst, "src", site.Src, "line", site.Line)

	r := c.lookup(n)
	if r != nil {
		c.logger.Warn("node constructed twice, keeping first construct kind",
			"node", n.ID(), "first", r.prov.ConstructKind, "second", kind, "line", site.Line)
	}

	switch kind {
	case ConstructCreate:
		if r == nil {
			c.insert(newRecord(n, kind, site))
		}
		c.record(seq, EventConstruct, n, site, kind.String(), true)

	case ConstructClone:
		origin, ok := asNode(extra)
		if !ok {
			return c.abort(newFatal(ErrCodeMissingOrigin, site, "clone of node %d has no origin node", n.ID()))
		}
		if r == nil {
			r = newRecord(n, kind, site)
			r.origin = origin
			c.insert(r)
		}
		c.record(seq, EventConstruct, n, site, kind.String(), true)

	case ConstructMove:
		inRegion, ok, err := c.oracle.inRegionOfPosition(extra, n, site)
		if !ok {
			return c.abort(newFatal(ErrCodeMissingPosition, site, "move of node %d has no target position", n.ID()))
		}
		if err != nil {
			return c.abortWith(err)
		}
		if r == nil {
			r = newRecord(n, kind, site)
			c.insert(r)
		}
		r.moveAt(inRegion)
		c.record(seq, EventConstruct, n, site, kind.String(), inRegion)

	default:
		return c.abort(newFatal(ErrCodeInvalidKind, site, "cannot construct a node as %s", kind))
	}

	return nil
}

// TrackReplace records that dst replaced src, e.g. through replace-all-uses.
//
// A destination that was never constructed is a pre-existing node; it gets
// an Untracked record and a warning. Values that are not nodes are ignored.
func (c *Checker) TrackReplace(dst, src any, site Site) error {
	if c.closed {
		return ErrScopeClosed
	}

	dstNode, ok := asNode(dst)
	if !ok {
		c.logger.Debug("replace ignored: destination is not a node", "dst", site.Dst, "line", site.Line)
		return nil
	}
	srcNode, ok := asNode(src)
	if !ok {
		c.logger.Debug("replace ignored: source is not a node", "src", site.Src, "line", site.Line)
		return nil
	}

	inRegion, err := c.oracle.inDominantRegion(dstNode, srcNode, site)
	if err != nil {
		return c.abortWith(err)
	}

	seq := c.clock.Next()
	c.logger.Debug("track replace",
		"seq", seq, "in_region", inRegion, "dst", dstNode.ID(), "src", srcNode.ID(), "line", site.Line)

	r := c.lookup(dstNode)
	if r == nil {
		c.logger.Warn("replacement by untracked node",
			"node", dstNode.ID(), "dst", site.Dst, "line", site.Line)
		r = newRecord(dstNode, ConstructUntracked, site)
		c.insert(r)
	}
	r.replaceAt(site.Line, inRegion)
	c.record(seq, EventReplace, dstNode, site, "", inRegion)

	return nil
}

// TrackInsert records that dst is about to be inserted at pos, a node or a
// block. Only clones are affected: the insertion point must stay in the
// dominant region of the clone's origin.
func (c *Checker) TrackInsert(dst, pos any, site Site) error {
	if c.closed {
		return ErrScopeClosed
	}

	n, ok := asNode(dst)
	if !ok {
		return nil
	}
	r := c.lookup(n)
	if r == nil || r.prov.ConstructKind != ConstructClone {
		return nil
	}

	inRegion, ok, err := c.oracle.inRegionOfPosition(pos, r.origin, site)
	if !ok {
		c.logger.Debug("insert ignored: position is not a node or block", "node", n.ID(), "line", site.Line)
		return nil
	}
	if err != nil {
		return c.abortWith(err)
	}

	seq := c.clock.Next()
	c.logger.Debug("track insert",
		"seq", seq, "in_region", inRegion, "node", n.ID(), "pos", site.Src, "line", site.Line)

	r.insertAt(site.Line, inRegion)
	c.record(seq, EventInsert, n, site, "", inRegion)

	return nil
}

// TrackUpdate records the disposition the transformation declared for dst's
// debug location. The last declaration wins.
//
// Declaring on an untracked node is a usage anomaly of the instrumented
// code: it is logged and tolerated, and no record is created.
func (c *Checker) TrackUpdate(dst any, kind UpdateKind, site Site) error {
	if c.closed {
		return ErrScopeClosed
	}
	if !kind.Declarable() {
		return c.abort(newFatal(ErrCodeInvalidKind, site, "cannot declare %s", kind))
	}

	n, ok := asNode(dst)
	if !ok {
		c.logger.Warn("update ignored: destination is not a node", "dst", site.Dst, "line", site.Line)
		return nil
	}

	seq := c.clock.Next()
	c.logger.Debug("track update", "seq", seq, "kind", kind, "node", n.ID(), "line", site.Line)

	r := c.lookup(n)
	if r == nil {
		c.logger.Warn("update of untracked node, expecting any",
			"kind", kind, "node", n.ID(), "dst", site.Dst, "line", site.Line)
		c.record(seq, EventUpdate, n, site, kind.String(), true)
		return nil
	}
	r.declare(kind, site.Line)
	c.record(seq, EventUpdate, n, site, kind.String(), true)

	return nil
}

func (c *Checker) abortWith(err error) error {
	if fe, ok := err.(*FatalError); ok {
		return c.abort(fe)
	}
	return err
}

func (c *Checker) record(seq int64, op EventOp, n Node, site Site, kind string, inRegion bool) {
	c.trace = append(c.trace, Event{
		Seq:      seq,
		Op:       op,
		Node:     n.ID(),
		Line:     site.Line,
		Kind:     kind,
		InRegion: inRegion,
	})
}
