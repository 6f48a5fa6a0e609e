package instrument

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// tree-sitter-cpp node types.
const (
	nodeInclude       = "preproc_include"
	nodeUsing         = "using_declaration"
	nodeFunctionDef   = "function_definition"
	nodeFunctionDecl  = "function_declarator"
	nodeParamDecl     = "parameter_declaration"
	nodeCall          = "call_expression"
	nodeNew           = "new_expression"
	nodeField         = "field_expression"
	nodeQualified     = "qualified_identifier"
	nodeDeclaration   = "declaration"
	nodeAssignment    = "assignment_expression"
	nodeReturn        = "return_statement"
	nodeExprStatement = "expression_statement"
	nodePointerDecl   = "pointer_declarator"
	nodePointerExpr   = "pointer_expression"
	nodeIdentifier    = "identifier"
)

// descendants returns every node of type typ below n, in document order.
func descendants(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			if c.Type() == typ {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// ancestor returns the closest node of type typ above n, or nil.
func ancestor(n *sitter.Node, typ string) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == typ {
			return p
		}
	}
	return nil
}

// statement returns the expression statement n is the whole expression of,
// or nil.
func statement(n *sitter.Node) *sitter.Node {
	p := n.Parent()
	if p == nil || p.Type() != nodeExprStatement {
		return nil
	}
	return p
}

// row is the 1-based line n starts on.
func row(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// text returns n's source on one line, each original line trimmed.
func text(n *sitter.Node, src []byte) string {
	lines := strings.Split(n.Content(src), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, " ")
}

// declaredName returns the variable a declaration declares, looking
// through an initializer and a pointer declarator.
func declaredName(decl *sitter.Node) *sitter.Node {
	d := decl.ChildByFieldName("declarator")
	if d == nil {
		return nil
	}
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		d = inner
	}
	if d.Type() == nodePointerDecl {
		return d.ChildByFieldName("declarator")
	}
	return d
}

// assignedName returns the left side of an assignment, looking through a
// dereference.
func assignedName(assign *sitter.Node) *sitter.Node {
	left := assign.ChildByFieldName("left")
	if left != nil && left.Type() == nodePointerExpr {
		return left.ChildByFieldName("argument")
	}
	return left
}

// functionName returns the declared name of a function definition, or nil
// when it has no function declarator.
func functionName(def *sitter.Node) *sitter.Node {
	decls := descendants(def, nodeFunctionDecl)
	if len(decls) == 0 {
		return nil
	}
	name := decls[0].ChildByFieldName("declarator")
	if name != nil && name.Type() == nodeFunctionDecl {
		name = name.ChildByFieldName("declarator")
	}
	return name
}

// firstIdentifier returns n if it is an identifier, else the first
// identifier below it.
func firstIdentifier(n *sitter.Node) *sitter.Node {
	if n.Type() == nodeIdentifier {
		return n
	}
	if ids := descendants(n, nodeIdentifier); len(ids) > 0 {
		return ids[0]
	}
	return nil
}

// member splits a field expression callee into the object, the access
// operator ("." or "->") and the member name.
func member(callee *sitter.Node, src []byte) (obj *sitter.Node, op, name string, ok bool) {
	if callee.Type() != nodeField {
		return nil, "", "", false
	}
	obj = callee.ChildByFieldName("argument")
	field := callee.ChildByFieldName("field")
	opNode := callee.Child(1)
	if obj == nil || field == nil || opNode == nil {
		return nil, "", "", false
	}
	return obj, opNode.Content(src), field.Content(src), true
}

// addrOf is the prefix that turns an object accessed with op into a
// pointer.
func addrOf(op string) string {
	if op == "->" {
		return ""
	}
	return "&"
}

// arguments returns the named children of a call's argument list.
func arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if c := args.NamedChild(i); c != nil && c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}
