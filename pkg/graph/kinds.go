// Package graph provides the arena-backed directed multigraph underlying CFGs
// and CCFGs. Nodes and edges are addressed by integer handles; neither holds a
// pointer to the other.
package graph

import "fmt"

// NodeKind discriminates what a vertex represents.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota

	// Entry/exit variants.
	KindMethodEntry
	KindMethodExit
	KindConstructorEntry
	KindConstructorExit
	KindInitializerEntry
	KindInitializerExit
	KindFieldEntry
	KindFieldExit
	KindEnumConstantEntry
	KindEnumConstantExit
	KindClassEntry
	KindInterfaceEntry
	KindEnumEntry

	// Statements.
	KindAssignment
	KindDeclaration
	KindExpression
	KindIf
	KindWhile
	KindDo
	KindFor
	KindSwitch
	KindSwitchCase
	KindSwitchDefault
	KindReturn
	KindBreak
	KindContinue
	KindThrow
	KindTry
	KindCatch
	KindFinally
	KindLabeled
	KindSynchronized
	KindEmpty

	// Calls.
	KindMethodCall
	KindConstructorCall
	KindInstanceCreation
	KindReceiver
	KindFieldAccess

	// Parameters.
	KindFormalIn
	KindFormalOut
	KindActualIn
	KindActualOut

	// Joins.
	KindMerge
	KindJoin
)

var kindNames = [...]string{
	KindInvalid:           "invalid",
	KindMethodEntry:       "method_entry",
	KindMethodExit:        "method_exit",
	KindConstructorEntry:  "constructor_entry",
	KindConstructorExit:   "constructor_exit",
	KindInitializerEntry:  "initializer_entry",
	KindInitializerExit:   "initializer_exit",
	KindFieldEntry:        "field_entry",
	KindFieldExit:         "field_exit",
	KindEnumConstantEntry: "enum_constant_entry",
	KindEnumConstantExit:  "enum_constant_exit",
	KindClassEntry:        "class_entry",
	KindInterfaceEntry:    "interface_entry",
	KindEnumEntry:         "enum_entry",
	KindAssignment:        "assignment",
	KindDeclaration:       "declaration",
	KindExpression:        "expression",
	KindIf:                "if",
	KindWhile:             "while",
	KindDo:                "do",
	KindFor:               "for",
	KindSwitch:            "switch",
	KindSwitchCase:        "switch_case",
	KindSwitchDefault:     "switch_default",
	KindReturn:            "return",
	KindBreak:             "break",
	KindContinue:          "continue",
	KindThrow:             "throw",
	KindTry:               "try",
	KindCatch:             "catch",
	KindFinally:           "finally",
	KindLabeled:           "labeled",
	KindSynchronized:      "synchronized",
	KindEmpty:             "empty",
	KindMethodCall:        "method_call",
	KindConstructorCall:   "constructor_call",
	KindInstanceCreation:  "instance_creation",
	KindReceiver:          "receiver",
	KindFieldAccess:       "field_access",
	KindFormalIn:          "formal_in",
	KindFormalOut:         "formal_out",
	KindActualIn:          "actual_in",
	KindActualOut:         "actual_out",
	KindMerge:             "merge",
	KindJoin:              "join",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// MarshalText renders the kind name in JSON output.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *NodeKind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = NodeKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown node kind %q", text)
}

// IsEntry reports entry kinds, class-level entries included.
func (k NodeKind) IsEntry() bool {
	switch k {
	case KindMethodEntry, KindConstructorEntry, KindInitializerEntry, KindFieldEntry,
		KindEnumConstantEntry, KindClassEntry, KindInterfaceEntry, KindEnumEntry:
		return true
	}
	return false
}

// IsExit reports exit kinds.
func (k NodeKind) IsExit() bool {
	switch k {
	case KindMethodExit, KindConstructorExit, KindInitializerExit, KindFieldExit, KindEnumConstantExit:
		return true
	}
	return false
}

// IsBranch reports nodes that carry both a true and a false successor.
func (k NodeKind) IsBranch() bool {
	switch k {
	case KindIf, KindWhile, KindDo, KindFor, KindSwitch:
		return true
	}
	return false
}

// IsLoop reports loop headers.
func (k NodeKind) IsLoop() bool {
	return k == KindWhile || k == KindDo || k == KindFor
}

// IsCall reports call-boundary kinds that may raise exceptions.
func (k NodeKind) IsCall() bool {
	switch k {
	case KindMethodCall, KindConstructorCall, KindInstanceCreation:
		return true
	}
	return false
}

// IsParameter reports formal/actual parameter kinds.
func (k NodeKind) IsParameter() bool {
	switch k {
	case KindFormalIn, KindFormalOut, KindActualIn, KindActualOut:
		return true
	}
	return false
}

// IsJump reports statements that do not fall through to the textually
// following code.
func (k NodeKind) IsJump() bool {
	switch k {
	case KindBreak, KindContinue, KindReturn, KindThrow:
		return true
	}
	return false
}

// IsDefining reports statement kinds that may establish an alias.
func (k NodeKind) IsDefining() bool {
	return k == KindAssignment || k == KindDeclaration
}

// EdgeKind labels a control-flow edge.
type EdgeKind uint8

const (
	EdgeTrue EdgeKind = iota
	EdgeFalse
	EdgeFallThrough
	EdgeExceptionCatch
	EdgeLoopBack
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeTrue:
		return "true"
	case EdgeFalse:
		return "false"
	case EdgeFallThrough:
		return "fall_through"
	case EdgeExceptionCatch:
		return "exception_catch"
	case EdgeLoopBack:
		return "loop_back"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind name in JSON output.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *EdgeKind) UnmarshalText(text []byte) error {
	for c := EdgeTrue; c <= EdgeLoopBack; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown edge kind %q", text)
}
