package syntax

// Inspect walks statements and expressions depth-first in source order,
// calling fn for each node (Stmt or Expr). If fn returns false the children of
// that node are skipped. Anonymous class bodies are not entered.
func Inspect(node any, fn func(node any) bool) {
	switch n := node.(type) {
	case nil:
		return
	case Stmt:
		if isNilStmt(n) || !fn(n) {
			return
		}
		inspectStmt(n, fn)
	case Expr:
		if isNilExpr(n) || !fn(n) {
			return
		}
		inspectExpr(n, fn)
	}
}

func isNilStmt(s Stmt) bool {
	switch v := s.(type) {
	case *Block:
		return v == nil
	case *LocalVar:
		return v == nil
	}
	return s == nil
}

func isNilExpr(e Expr) bool {
	return e == nil
}

func inspectStmts(stmts []Stmt, fn func(any) bool) {
	for _, s := range stmts {
		Inspect(s, fn)
	}
}

func inspectExprs(exprs []Expr, fn func(any) bool) {
	for _, e := range exprs {
		if e != nil {
			Inspect(e, fn)
		}
	}
}

func inspectStmt(s Stmt, fn func(any) bool) {
	switch n := s.(type) {
	case *Block:
		inspectStmts(n.Stmts, fn)
	case *ExprStmt:
		Inspect(n.X, fn)
	case *LocalVar:
		if n.Init != nil {
			Inspect(n.Init, fn)
		}
	case *If:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		if n.Else != nil {
			Inspect(n.Else, fn)
		}
	case *While:
		Inspect(n.Cond, fn)
		Inspect(n.Body, fn)
	case *Do:
		Inspect(n.Body, fn)
		Inspect(n.Cond, fn)
	case *For:
		inspectStmts(n.Init, fn)
		if n.Cond != nil {
			Inspect(n.Cond, fn)
		}
		inspectExprs(n.Update, fn)
		Inspect(n.Body, fn)
	case *ForEach:
		Inspect(n.Iterable, fn)
		Inspect(n.Body, fn)
	case *Switch:
		Inspect(n.Tag, fn)
		for _, c := range n.Cases {
			inspectExprs(c.Exprs, fn)
			inspectStmts(c.Body, fn)
		}
	case *Return:
		if n.Result != nil {
			Inspect(n.Result, fn)
		}
	case *Throw:
		Inspect(n.X, fn)
	case *Try:
		for _, r := range n.Resources {
			Inspect(r, fn)
		}
		if n.Body != nil {
			Inspect(n.Body, fn)
		}
		for _, c := range n.Catches {
			if c.Body != nil {
				Inspect(c.Body, fn)
			}
		}
		if n.Finally != nil {
			Inspect(n.Finally, fn)
		}
	case *Labeled:
		Inspect(n.Body, fn)
	case *Synchronized:
		Inspect(n.Lock, fn)
		if n.Body != nil {
			Inspect(n.Body, fn)
		}
	case *ConstructorCall:
		inspectExprs(n.Args, fn)
	}
}

func inspectExpr(e Expr, fn func(any) bool) {
	switch n := e.(type) {
	case *FieldAccess:
		if n.X != nil {
			Inspect(n.X, fn)
		}
	case *Assign:
		Inspect(n.LHS, fn)
		Inspect(n.RHS, fn)
	case *Unary:
		Inspect(n.X, fn)
	case *Binary:
		Inspect(n.X, fn)
		Inspect(n.Y, fn)
	case *Call:
		if n.Recv != nil {
			Inspect(n.Recv, fn)
		}
		inspectExprs(n.Args, fn)
	case *New:
		inspectExprs(n.Args, fn)
	case *NewArray:
		inspectExprs(n.Dims, fn)
		inspectExprs(n.Init, fn)
	case *Cast:
		Inspect(n.X, fn)
	case *Conditional:
		Inspect(n.Cond, fn)
		Inspect(n.Then, fn)
		Inspect(n.Else, fn)
	case *InstanceOf:
		Inspect(n.X, fn)
	case *Index:
		Inspect(n.X, fn)
		Inspect(n.Index, fn)
	case *ArrayInit:
		inspectExprs(n.Elems, fn)
	}
}

// CallTargets returns the method bindings invoked anywhere under node, in
// source order (calls, instance creations and explicit constructor calls).
func CallTargets(node any) []*MethodBinding {
	var out []*MethodBinding
	Inspect(node, func(n any) bool {
		switch v := n.(type) {
		case *Call:
			if v.Target != nil {
				out = append(out, v.Target)
			}
		case *New:
			if v.Target != nil {
				out = append(out, v.Target)
			}
		case *ConstructorCall:
			if v.Target != nil {
				out = append(out, v.Target)
			}
		}
		return true
	})
	return out
}

// FieldBindings returns every field binding referenced under node.
func FieldBindings(node any) []*VarBinding {
	var out []*VarBinding
	Inspect(node, func(n any) bool {
		switch v := n.(type) {
		case *Name:
			if v.Binding != nil && v.Binding.Kind == FieldBinding {
				out = append(out, v.Binding)
			}
		case *FieldAccess:
			if v.Binding != nil {
				out = append(out, v.Binding)
			}
		}
		return true
	})
	return out
}

// ThrownTypes returns the static types of throw statements under node.
func ThrownTypes(node any, typeOf func(Expr) TypeRef) []string {
	var out []string
	Inspect(node, func(n any) bool {
		if t, ok := n.(*Throw); ok {
			if tr := typeOf(t.X); !tr.IsZero() {
				out = append(out, tr.Name)
			}
		}
		return true
	})
	return out
}

// StaticType returns the static type of simple expression shapes, or a zero
// TypeRef when it cannot be determined without a type checker.
func StaticType(e Expr) TypeRef {
	switch v := e.(type) {
	case *Name:
		if v.Binding != nil {
			return v.Binding.Type
		}
	case *FieldAccess:
		if v.Binding != nil {
			return v.Binding.Type
		}
	case *New:
		return v.Type
	case *Cast:
		return v.Type
	case *Call:
		if v.Target != nil {
			return v.Target.Result
		}
	case *Literal:
		return v.Type
	case *NewArray:
		t := v.Type
		t.Dims += len(v.Dims)
		if len(v.Dims) == 0 {
			t.Dims++
		}
		return t
	case *Conditional:
		return StaticType(v.Then)
	case *Assign:
		return StaticType(v.LHS)
	case *Index:
		t := StaticType(v.X)
		if t.Dims > 0 {
			t.Dims--
		}
		return t
	}
	return TypeRef{}
}
