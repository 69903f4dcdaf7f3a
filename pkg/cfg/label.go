package cfg

import (
	"strings"

	"github.com/l3aro/jflow/pkg/syntax"
)

// text renders an expression compactly for node labels.
func text(e syntax.Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e syntax.Expr) {
	switch v := e.(type) {
	case nil:
	case *syntax.Name:
		sb.WriteString(v.Ident)
	case *syntax.FieldAccess:
		if v.X != nil {
			writeExpr(sb, v.X)
			sb.WriteByte('.')
		}
		sb.WriteString(v.Name)
	case *syntax.This:
		sb.WriteString("this")
	case *syntax.Literal:
		sb.WriteString(v.Value)
	case *syntax.Assign:
		writeExpr(sb, v.LHS)
		sb.WriteString(" " + v.Op + " ")
		writeExpr(sb, v.RHS)
	case *syntax.Unary:
		if v.Postfix {
			writeExpr(sb, v.X)
			sb.WriteString(v.Op)
		} else {
			sb.WriteString(v.Op)
			writeExpr(sb, v.X)
		}
	case *syntax.Binary:
		writeExpr(sb, v.X)
		sb.WriteString(" " + v.Op + " ")
		writeExpr(sb, v.Y)
	case *syntax.Call:
		if v.Recv != nil {
			writeExpr(sb, v.Recv)
			sb.WriteByte('.')
		}
		sb.WriteString(v.Name)
		writeArgs(sb, v.Args)
	case *syntax.New:
		sb.WriteString("new ")
		sb.WriteString(syntax.SimpleName(v.Type.String()))
		writeArgs(sb, v.Args)
	case *syntax.NewArray:
		sb.WriteString("new ")
		sb.WriteString(syntax.SimpleName(v.Type.Name))
		for _, d := range v.Dims {
			sb.WriteByte('[')
			writeExpr(sb, d)
			sb.WriteByte(']')
		}
		if v.Init != nil {
			sb.WriteString("[] {...}")
		}
	case *syntax.Cast:
		sb.WriteString("(" + syntax.SimpleName(v.Type.String()) + ") ")
		writeExpr(sb, v.X)
	case *syntax.Conditional:
		writeExpr(sb, v.Cond)
		sb.WriteString(" ? ")
		writeExpr(sb, v.Then)
		sb.WriteString(" : ")
		writeExpr(sb, v.Else)
	case *syntax.InstanceOf:
		writeExpr(sb, v.X)
		sb.WriteString(" instanceof " + syntax.SimpleName(v.Type.String()))
	case *syntax.Index:
		writeExpr(sb, v.X)
		sb.WriteByte('[')
		writeExpr(sb, v.Index)
		sb.WriteByte(']')
	case *syntax.ArrayInit:
		sb.WriteString("{...}")
	case *syntax.UnsupportedExpr:
		sb.WriteString(v.Text)
	}
}

func callText(name string, args []syntax.Expr) string {
	var sb strings.Builder
	sb.WriteString(name)
	writeArgs(&sb, args)
	return sb.String()
}

func writeArgs(sb *strings.Builder, args []syntax.Expr) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
	sb.WriteByte(')')
}

func typeNames(types []syntax.TypeRef) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
