// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package syntax

// Visitor holds a Visit method which is invoked for each node
// encountered by Walk. If the result visitor w is not nil, Walk visits
// each of the children of node with the visitor w, followed by a call
// of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order, calling v.Visit for
// every non-nil node reachable from node.
func Walk(v Visitor, node Node) {
	if node == nil {
		return
	}
	v = v.Visit(node)
	if v == nil {
		return
	}
	switch x := node.(type) {
	case *File:
		if x.Stmts != nil {
			Walk(v, x.Stmts)
		}
	case *Word:
		// leaf
	case *Redirection:
		Walk(v, x.Target)
	case *Assignment:
		Walk(v, x.Name)
		Walk(v, x.Value)
	case *SimpleCommand:
		for _, a := range x.Assigns {
			Walk(v, a)
		}
		for _, w := range x.Words {
			Walk(v, w)
		}
		for _, r := range x.Redirs {
			Walk(v, r)
		}
	case *Pipeline:
		for _, c := range x.Commands {
			Walk(v, c)
		}
	case *LogicalExpression:
		Walk(v, x.Left)
		Walk(v, x.Right)
	case *CompoundStatement:
		for _, s := range x.Statements {
			Walk(v, s)
		}
	case *ConditionalStatement:
		Walk(v, x.Cond)
		Walk(v, x.Then)
		for _, e := range x.Elifs {
			Walk(v, e.Cond)
			Walk(v, e.Body)
		}
		if x.Else != nil {
			Walk(v, x.Else)
		}
		for _, r := range x.Redirs {
			Walk(v, r)
		}
	case *LoopStatement:
		if x.Cond != nil {
			Walk(v, x.Cond)
		}
		if x.Variable != nil {
			Walk(v, x.Variable)
		}
		for _, it := range x.Items {
			Walk(v, it)
		}
		Walk(v, x.Body)
		for _, r := range x.Redirs {
			Walk(v, r)
		}
	case *CaseStatement:
		Walk(v, x.Expr)
		for _, c := range x.Clauses {
			for _, p := range c.Patterns {
				Walk(v, p)
			}
			Walk(v, c.Body)
		}
		for _, r := range x.Redirs {
			Walk(v, r)
		}
	case *Group:
		Walk(v, x.Body)
		for _, r := range x.Redirs {
			Walk(v, r)
		}
	case *FuncDecl:
		Walk(v, x.Name)
		Walk(v, x.Body)
	}
	v.Visit(nil)
}
