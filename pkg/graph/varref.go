package graph

import (
	"fmt"
	"strconv"
)

// RefKind discriminates VarRef variants.
type RefKind uint8

const (
	RefLocal RefKind = iota
	RefField
	RefTemp
	RefSpecial
)

func (k RefKind) String() string {
	switch k {
	case RefLocal:
		return "local"
	case RefField:
		return "field"
	case RefTemp:
		return "temp"
	case RefSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind name in JSON output.
func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *RefKind) UnmarshalText(text []byte) error {
	for c := RefLocal; c <= RefSpecial; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown reference kind %q", text)
}

// ReturnValueName is the invisible variable defined by return statements.
const ReturnValueName = "$_"

// ThisName is the special reference for the receiver object.
const ThisName = "this"

// VarRef is a variable reference recorded in a node's def or use list.
type VarRef struct {
	Kind  RefKind `json:"kind"`
	Name  string  `json:"name"`
	Class string  `json:"class,omitempty"` // declaring class for fields
	Type  string  `json:"type,omitempty"`

	Primitive bool `json:"primitive,omitempty"`
	InProject bool `json:"in_project,omitempty"`
	Static    bool `json:"static,omitempty"`
	Modifiers int  `json:"modifiers,omitempty"`

	// Receiver is the object a field is accessed through.
	Receiver *VarRef `json:"receiver,omitempty"`
	// CallResult marks temps holding a call's result.
	CallResult bool `json:"call_result,omitempty"`
	// AliasOf names the reference this one was propagated from.
	AliasOf string `json:"alias_of,omitempty"`
}

// Local returns a local-variable (or parameter) reference.
func Local(name, typ string, primitive bool) *VarRef {
	return &VarRef{Kind: RefLocal, Name: name, Type: typ, Primitive: primitive, InProject: true}
}

// Field returns a field reference.
func Field(class, name, typ string, primitive, static, inProject bool) *VarRef {
	return &VarRef{
		Kind:      RefField,
		Name:      name,
		Class:     class,
		Type:      typ,
		Primitive: primitive,
		Static:    static,
		InProject: inProject,
	}
}

// Temp returns the synthetic temporary $t<n>.
func Temp(n int, typ string, primitive bool) *VarRef {
	return &VarRef{Kind: RefTemp, Name: "$t" + strconv.Itoa(n), Type: typ, Primitive: primitive}
}

// ReturnValue returns the invisible $_ reference.
func ReturnValue(typ string, primitive bool) *VarRef {
	return &VarRef{Kind: RefSpecial, Name: ReturnValueName, Type: typ, Primitive: primitive}
}

// This returns the special receiver reference for class.
func This(class string) *VarRef {
	return &VarRef{Kind: RefSpecial, Name: ThisName, Type: class, InProject: true}
}

// QualifiedName is Class.name for fields and the plain name otherwise.
func (v *VarRef) QualifiedName() string {
	if v.Kind == RefField && v.Class != "" {
		return v.Class + "." + v.Name
	}
	return v.Name
}

// Same reports identity of the referenced variable: fields match on qualified
// name, everything else on kind and name.
func (v *VarRef) Same(o *VarRef) bool {
	if v == nil || o == nil {
		return false
	}
	if v.Kind == RefField || o.Kind == RefField {
		return v.Kind == o.Kind && v.QualifiedName() == o.QualifiedName()
	}
	return v.Kind == o.Kind && v.Name == o.Name
}

// Root follows the receiver chain to the outermost object reference.
func (v *VarRef) Root() *VarRef {
	r := v
	for r.Receiver != nil {
		r = r.Receiver
	}
	return r
}

// IsAlias reports references added by alias propagation.
func (v *VarRef) IsAlias() bool {
	return v.AliasOf != ""
}

// WithReceiver returns a shallow copy of v accessed through recv.
func (v *VarRef) WithReceiver(recv *VarRef) *VarRef {
	c := *v
	c.Receiver = recv
	return &c
}

// AsAliasOf returns a copy of v marked as propagated from name.
func (v *VarRef) AsAliasOf(name string) *VarRef {
	c := *v
	c.Receiver = nil
	c.AliasOf = name
	return &c
}

func (v *VarRef) String() string {
	if v.Receiver != nil && v.Receiver.Kind != RefSpecial {
		return v.Receiver.String() + "." + v.Name
	}
	return v.QualifiedName()
}

// ContainsRef reports whether refs holds a reference Same as r.
func ContainsRef(refs []*VarRef, r *VarRef) bool {
	for _, x := range refs {
		if x.Same(r) {
			return true
		}
	}
	return false
}
