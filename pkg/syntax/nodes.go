package syntax

// Stmt is any statement node.
type Stmt interface {
	Pos() int
	stmtNode()
}

// Expr is any expression node.
type Expr interface {
	Pos() int
	exprNode()
}

// Line is embedded by every node to carry its 1-based source line.
type Line int

// Pos returns the source line.
func (l Line) Pos() int { return int(l) }

// Statements.
type (
	Block struct {
		Line
		Stmts []Stmt
	}

	ExprStmt struct {
		Line
		X Expr
	}

	// LocalVar declares one local variable, optionally initialized.
	LocalVar struct {
		Line
		Name    string
		Type    TypeRef
		Init    Expr
		Binding *VarBinding
	}

	If struct {
		Line
		Cond Expr
		Then Stmt
		Else Stmt
	}

	While struct {
		Line
		Cond Expr
		Body Stmt
	}

	Do struct {
		Line
		Body Stmt
		Cond Expr
	}

	For struct {
		Line
		Init   []Stmt
		Cond   Expr
		Update []Expr
		Body   Stmt
	}

	ForEach struct {
		Line
		Var      *LocalVar
		Iterable Expr
		Body     Stmt
	}

	Switch struct {
		Line
		Tag   Expr
		Cases []*SwitchCase
	}

	// SwitchCase is one group of labels with its statements.
	SwitchCase struct {
		Line
		Exprs   []Expr
		Default bool
		Body    []Stmt
	}

	Return struct {
		Line
		Result Expr
	}

	Break struct {
		Line
		Label string
	}

	Continue struct {
		Line
		Label string
	}

	Throw struct {
		Line
		X Expr
	}

	Try struct {
		Line
		Resources []*LocalVar
		Body      *Block
		Catches   []*CatchClause
		Finally   *Block
	}

	CatchClause struct {
		Line
		Param *LocalVar
		Types []TypeRef
		Body  *Block
	}

	Labeled struct {
		Line
		Label string
		Body  Stmt
	}

	Synchronized struct {
		Line
		Lock Expr
		Body *Block
	}

	Empty struct {
		Line
	}

	// ConstructorCall is an explicit this(...) or super(...) invocation.
	ConstructorCall struct {
		Line
		Super  bool
		Args   []Expr
		Target *MethodBinding
	}

	// Unsupported stands for a construct the engine does not model.
	Unsupported struct {
		Line
		Text string
	}
)

func (*Block) stmtNode()           {}
func (*ExprStmt) stmtNode()        {}
func (*LocalVar) stmtNode()        {}
func (*If) stmtNode()              {}
func (*While) stmtNode()           {}
func (*Do) stmtNode()              {}
func (*For) stmtNode()             {}
func (*ForEach) stmtNode()         {}
func (*Switch) stmtNode()          {}
func (*Return) stmtNode()          {}
func (*Break) stmtNode()           {}
func (*Continue) stmtNode()        {}
func (*Throw) stmtNode()           {}
func (*Try) stmtNode()             {}
func (*Labeled) stmtNode()         {}
func (*Synchronized) stmtNode()    {}
func (*Empty) stmtNode()           {}
func (*ConstructorCall) stmtNode() {}
func (*Unsupported) stmtNode()     {}

// Expressions.
type (
	// Name is a simple name; Binding is nil when the name could not be resolved
	// or denotes a type.
	Name struct {
		Line
		Ident   string
		Binding *VarBinding
		// TypeName is set when the name denotes a type (static receiver).
		TypeName string
	}

	FieldAccess struct {
		Line
		X       Expr
		Name    string
		Binding *VarBinding
	}

	This struct {
		Line
		Class string
	}

	Literal struct {
		Line
		Value string
		Type  TypeRef
	}

	Assign struct {
		Line
		Op  string
		LHS Expr
		RHS Expr
	}

	Unary struct {
		Line
		Op      string
		X       Expr
		Postfix bool
	}

	Binary struct {
		Line
		Op string
		X  Expr
		Y  Expr
	}

	Call struct {
		Line
		Recv   Expr // nil for implicit this or unqualified static calls
		Name   string
		Args   []Expr
		Target *MethodBinding
	}

	New struct {
		Line
		Type   TypeRef
		Args   []Expr
		Target *MethodBinding
		Body   *TypeDecl // anonymous class body, not modelled
	}

	NewArray struct {
		Line
		Type TypeRef
		Dims []Expr
		Init []Expr
	}

	Cast struct {
		Line
		Type TypeRef
		X    Expr
	}

	Conditional struct {
		Line
		Cond Expr
		Then Expr
		Else Expr
	}

	InstanceOf struct {
		Line
		X    Expr
		Type TypeRef
	}

	Index struct {
		Line
		X     Expr
		Index Expr
	}

	ArrayInit struct {
		Line
		Elems []Expr
	}

	// UnsupportedExpr stands for lambdas, method references and the like.
	UnsupportedExpr struct {
		Line
		Text string
	}
)

func (*Name) exprNode()            {}
func (*FieldAccess) exprNode()     {}
func (*This) exprNode()            {}
func (*Literal) exprNode()         {}
func (*Assign) exprNode()          {}
func (*Unary) exprNode()           {}
func (*Binary) exprNode()          {}
func (*Call) exprNode()            {}
func (*New) exprNode()             {}
func (*NewArray) exprNode()        {}
func (*Cast) exprNode()            {}
func (*Conditional) exprNode()     {}
func (*InstanceOf) exprNode()      {}
func (*Index) exprNode()           {}
func (*ArrayInit) exprNode()       {}
func (*UnsupportedExpr) exprNode() {}

// IsIncDec reports whether op is ++ or --.
func IsIncDec(op string) bool {
	return op == "++" || op == "--"
}
