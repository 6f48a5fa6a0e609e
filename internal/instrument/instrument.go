package instrument

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/roach88/dlsan/internal/config"
)

var (
	// ErrAlreadyInstrumented is returned for sources that carry every hook
	// marker.
	ErrAlreadyInstrumented = errors.New("already instrumented")

	// ErrNoInclude is returned for sources without an #include to anchor
	// the runtime header on.
	ErrNoInclude = errors.New("no #include directive")
)

// CheckError reports hook markers missing from the instrumented output.
// Nothing is written when it is returned.
type CheckError struct {
	Missing []string
}

func (e *CheckError) Error() string {
	return "instrumentation check failed: missing " + strings.Join(e.Missing, ", ")
}

// Warning is a construct the instrumenter recognized but could not hook.
type Warning struct {
	Line    int
	Message string
	Source  string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %s", w.Line, w.Message, w.Source)
}

// Result is an instrumented source.
type Result struct {
	Output   []byte
	Edits    int
	Warnings []Warning

	// Path is where InstrumentFile wrote Output.
	Path string
}

// Option configures an Instrumenter.
type Option func(*Instrumenter)

// WithLogger sets the logger warnings are reported to. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(in *Instrumenter) {
		in.logger = l
	}
}

// Instrumenter inserts tracking hooks into C++ sources.
//
// Thread-safety: Instrument may be called concurrently. Each call creates
// its own tree-sitter parser.
type Instrumenter struct {
	match  matcher
	logger *slog.Logger
}

// New creates an instrumenter that recognizes the callees in tables.
func New(tables config.InstrumentConfig, opts ...Option) *Instrumenter {
	in := &Instrumenter{
		match:  matcher{tables: tables},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Instrument returns src with hooks inserted. fileName is recorded in the
// checker construction hook.
func (in *Instrumenter) Instrument(ctx context.Context, src []byte, fileName string) (*Result, error) {
	if len(Missing(src)) == 0 {
		return nil, ErrAlreadyInstrumented
	}

	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	s := &session{
		match:  in.match,
		logger: in.logger.With("file", fileName),
		src:    src,
		file:   fileName,
		edits:  newEditSet(),
	}

	root := tree.RootNode()
	if root.HasError() {
		s.warn(root, "source has syntax errors, hooks may be incomplete")
	}

	if err := s.visitPreamble(root); err != nil {
		return nil, err
	}
	for _, def := range descendants(root, nodeFunctionDef) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.visitFunction(def)
	}

	out, skipped := s.edits.apply(src)
	for _, e := range skipped {
		s.warnings = append(s.warnings, Warning{Message: "overlapping edit skipped", Source: e.text})
		s.logger.Warn("overlapping edit skipped", "offset", e.start, "text", e.text)
	}

	if missing := Missing(out); len(missing) > 0 {
		return nil, &CheckError{Missing: missing}
	}

	return &Result{
		Output:   out,
		Edits:    s.edits.len() - len(skipped),
		Warnings: s.warnings,
	}, nil
}

// session collects the edits for one source.
type session struct {
	match    matcher
	logger   *slog.Logger
	src      []byte
	file     string
	edits    *editSet
	warnings []Warning
}

func (s *session) warn(n *sitter.Node, msg string) {
	w := Warning{Line: row(n), Message: msg, Source: text(n, s.src)}
	s.warnings = append(s.warnings, w)
	s.logger.Warn(msg, "line", w.Line, "source", w.Source)
}

func (s *session) text(n *sitter.Node) string {
	return text(n, s.src)
}

// visitPreamble adds the runtime header before the first include and the
// checker pointer after the first using declaration, or after the last
// include when there is none.
func (s *session) visitPreamble(root *sitter.Node) error {
	includes := descendants(root, nodeInclude)
	if len(includes) == 0 {
		return ErrNoInclude
	}
	s.edits.insert(includes[0].StartByte(), HeaderInclude)

	anchor := includes[len(includes)-1]
	if using := descendants(root, nodeUsing); len(using) > 0 {
		anchor = using[0]
	}
	s.edits.insert(s.lineEnd(anchor.EndByte()), GlobalDecl)
	return nil
}

// lineEnd returns the offset just past the newline ending the line that
// contains pos. A pos already at a line start is returned unchanged.
func (s *session) lineEnd(pos uint32) uint32 {
	if pos > 0 && s.src[pos-1] == '\n' {
		return pos
	}
	if i := strings.IndexByte(string(s.src[pos:]), '\n'); i >= 0 {
		return pos + uint32(i) + 1
	}
	return uint32(len(s.src))
}

func (s *session) visitFunction(def *sitter.Node) {
	name := functionName(def)
	if name == nil {
		s.warn(def, "function definition without declarator")
		return
	}

	if s.match.isPassEntry(s.text(name)) {
		s.visitPassEntry(def)
		return
	}
	for _, call := range descendants(def, nodeCall) {
		s.visitCall(call)
	}
	for _, expr := range descendants(def, nodeNew) {
		s.visitNew(expr)
	}
}

// visitPassEntry constructs the checker at the top of the body and runs
// the check before every return.
func (s *session) visitPassEntry(def *sitter.Node) {
	params := descendants(def, nodeFunctionDecl)[0].ChildByFieldName("parameters")
	var first *sitter.Node
	if params != nil {
		if ps := descendants(params, nodeParamDecl); len(ps) > 0 {
			first = ps[0]
		}
	}
	if first == nil {
		s.warn(def, "pass entry without parameters")
		return
	}

	typ := first.ChildByFieldName("type")
	if typ == nil {
		s.warn(first, "pass entry parameter without type")
		return
	}
	typeName := s.text(typ)
	if i := strings.LastIndex(typeName, "::"); i >= 0 {
		typeName = typeName[i+2:]
	}
	switch typeName {
	case "Function", "Loop", "LoopNest":
	default:
		s.warn(first, "pass entry target is not a Function, Loop or LoopNest")
		return
	}

	var target *sitter.Node
	if d := first.ChildByFieldName("declarator"); d != nil {
		target = firstIdentifier(d)
	}
	body := def.ChildByFieldName("body")
	if target == nil || body == nil || body.ChildCount() < 2 {
		s.warn(first, "pass entry without a named target or body")
		return
	}

	s.edits.insert(body.Child(1).StartByte(), initHook(s.text(target), s.file))
	for _, ret := range descendants(body, nodeReturn) {
		s.edits.insert(ret.StartByte(), checkOpen)
		s.edits.insert(ret.EndByte(), blockClose)
	}
}

func (s *session) visitCall(call *sitter.Node) {
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return
	}

	obj, op, name, isMember := member(callee, s.src)
	switch {
	case isMember:
	case callee.Type() == nodeQualified:
		name = s.text(callee)
	default:
		return
	}

	kind := s.match.classify(name)
	if kind == calleeNone {
		return
	}
	if kind == calleeCreate {
		s.trackCreate(call)
		return
	}
	if !isMember {
		s.warn(call, name+" called without an object")
		return
	}

	switch kind {
	case calleeClone:
		s.trackClone(call, obj, op)
	case calleeMove:
		s.trackMove(call, obj, op)
	case calleeReplace:
		s.trackReplace(call, obj, op, name)
	case calleePreserve, calleeMerge, calleeDrop:
		s.trackUpdate(call, obj, op, kind)
	case calleeInsert:
		s.trackInsert(call, obj, op, name)
	}
}

func (s *session) visitNew(expr *sitter.Node) {
	typ := expr.ChildByFieldName("type")
	if typ == nil || !s.match.isCreate(s.text(typ)) {
		return
	}
	s.trackCreate(expr)
}

// trackCreate hooks a creating call or new expression through whatever
// holds its result: a declared variable, an assigned one, a returned value
// or, for a bare statement, a temporary.
func (s *session) trackCreate(expr *sitter.Node) {
	if decl := ancestor(expr, nodeDeclaration); decl != nil {
		v := declaredName(decl)
		if v == nil {
			s.warn(decl, "creating declaration without a variable")
			return
		}
		name := s.text(v)
		s.edits.insert(decl.EndByte(), " "+trackDst(name, "nullptr", cxxCreating, row(decl), name, ""))
		return
	}

	if assign := ancestor(expr, nodeAssignment); assign != nil {
		s.wrapAssignment(assign, "nullptr", cxxCreating, "")
		return
	}

	if ret := ancestor(expr, nodeReturn); ret != nil {
		returned := string(s.src[ret.StartByte():expr.StartByte()]) + "V" + string(s.src[expr.EndByte():ret.EndByte()])
		s.edits.replace(ret.StartByte(), ret.EndByte(), fmt.Sprintf("{ auto *V = %s; %s %s }",
			s.text(expr), trackDst("V", "nullptr", cxxCreating, row(expr), "", ""), returned))
		return
	}

	if stmt := statement(expr); stmt != nil {
		s.edits.replace(stmt.StartByte(), stmt.EndByte(), fmt.Sprintf("{ Instruction *I = %s; %s }",
			s.text(expr), trackDst("I", "nullptr", cxxCreating, row(expr), "", "")))
		return
	}

	s.warn(expr, "unsupported creating expression")
}

// trackClone hooks `NI = OI->clone()` through the declared or assigned
// clone.
func (s *session) trackClone(call, obj *sitter.Node, op string) {
	origin := addrOf(op) + s.text(obj)

	if decl := ancestor(call, nodeDeclaration); decl != nil {
		v := declaredName(decl)
		if v == nil {
			s.warn(decl, "clone declaration without a variable")
			return
		}
		name := s.text(v)
		s.edits.insert(decl.EndByte(), " "+trackDst(name, origin, cxxCloning, row(decl), name, s.text(obj)))
		return
	}

	if assign := ancestor(call, nodeAssignment); assign != nil {
		s.wrapAssignment(assign, origin, cxxCloning, s.text(obj))
		return
	}

	s.warn(call, "clone result is neither declared nor assigned")
}

// wrapAssignment hooks the variable assigned by the statement holding
// assign.
func (s *session) wrapAssignment(assign *sitter.Node, origin, kind, originName string) {
	stmt := statement(assign)
	v := assignedName(assign)
	if stmt == nil || v == nil {
		s.warn(assign, "assignment is not a statement")
		return
	}
	name := s.text(v)
	s.wrap(stmt, "", " "+trackDst(name, origin, kind, row(assign), name, originName))
}

// wrap surrounds stmt with braces, adding before at the start and after at
// the end inside them.
func (s *session) wrap(stmt *sitter.Node, before, after string) {
	s.edits.insert(stmt.StartByte(), "{ "+before)
	s.edits.insert(stmt.EndByte(), after+blockClose)
}

// trackMove hooks `I->moveBefore(Pos)`. The hook runs before the move.
func (s *session) trackMove(call, obj *sitter.Node, op string) {
	stmt := statement(call)
	args := arguments(call)
	if stmt == nil || len(args) == 0 || len(args) > 2 {
		s.warn(call, "unsupported move")
		return
	}

	pos := s.text(args[0])
	if len(args) == 2 {
		// (BasicBlock &, iterator)
		pos = "&" + pos
	}
	dst := s.text(obj)
	s.wrap(stmt, trackDst(addrOf(op)+dst, pos, cxxMoving, row(call), dst, pos)+" ", "")
}

// trackReplace rewrites a replacement so that both values are evaluated
// once and reported after the replacement.
func (s *session) trackReplace(call, obj *sitter.Node, op, name string) {
	stmt := statement(call)
	args := arguments(call)
	if stmt == nil || len(args) == 0 || len(args) > 2 {
		s.warn(call, "unsupported replacement")
		return
	}

	var repl string
	if len(args) == 1 {
		// Src->replaceAllUsesWith(Dst)
		src, dst := s.text(obj), s.text(args[0])
		repl = fmt.Sprintf("{ Value *DebugLocSrc = %s%s; Value *DebugLocDst = %s; DebugLocSrc->%s(DebugLocDst); %s }",
			addrOf(op), src, dst, name, trackSrc(row(call), dst, src))
	} else {
		// User->replaceUsesOfWith(Src, Dst)
		src, dst := s.text(args[0]), s.text(args[1])
		repl = fmt.Sprintf("{ Value *DebugLocSrc = %s; Value *DebugLocDst = %s; %s%s%s(DebugLocSrc, DebugLocDst); %s }",
			src, dst, s.text(obj), op, name, trackSrc(row(call), dst, src))
	}
	s.edits.replace(stmt.StartByte(), stmt.EndByte(), repl)
}

// trackUpdate reports a declared disposition after the call that makes it.
func (s *session) trackUpdate(call, obj *sitter.Node, op string, kind calleeKind) {
	stmt := statement(call)
	if stmt == nil {
		s.warn(call, "debug location update is not a statement")
		return
	}

	dst := s.text(obj)
	ptr := addrOf(op) + dst
	var hook string
	switch kind {
	case calleePreserve:
		hook = trackPreserving(ptr, row(call), dst)
	case calleeMerge:
		hook = trackMerging(ptr, row(call))
	default:
		hook = trackDropping(ptr, row(call), dst)
	}
	s.wrap(stmt, "", " "+hook)
}

// trackInsert hooks an insertion before it happens. Only the position
// matters to the checker, so iterators are turned into the instruction or
// block they point into.
func (s *session) trackInsert(call, obj *sitter.Node, op, name string) {
	stmt := statement(call)
	args := arguments(call)
	if stmt == nil || len(args) == 0 || len(args) > 2 {
		s.warn(call, "unsupported insertion")
		return
	}

	pos := s.text(args[0])
	if strings.HasPrefix(name, "insertBefore") {
		if len(args) == 1 {
			// insertBefore(iterator)
			pos = "&*" + pos
		} else {
			// insertBefore(BasicBlock &, iterator)
			pos = "&" + pos
		}
	}
	inst := s.text(obj)
	s.wrap(stmt, trackInsertion(addrOf(op)+inst, pos, row(call), inst, pos)+" ", "")
}
