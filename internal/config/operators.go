package config

// Operators Configuration
//
// This is the single source of truth for operator kinds: the names accepted
// after the `operator` keyword in impl blocks, the slots of a shape's
// operator table, and the mapping from binary operator tokens to those slots.

// OpKind indexes a shape's operator table.
type OpKind int

const (
	OpAdd OpKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpLt
	OpLe
	OpNeg
	OpGet
	OpSet
	OpStr
	OpLen
	OpCall
	OpRAdd
	OpRMul
	OpPipe // reserved: parsed and type-checked, no runtime instruction

	OpCount
)

var opNames = [OpCount]string{
	OpAdd:  "add",
	OpSub:  "sub",
	OpMul:  "mul",
	OpDiv:  "div",
	OpMod:  "mod",
	OpEq:   "eq",
	OpLt:   "lt",
	OpLe:   "le",
	OpNeg:  "neg",
	OpGet:  "get",
	OpSet:  "set",
	OpStr:  "str",
	OpLen:  "len",
	OpCall: "call",
	OpRAdd: "radd",
	OpRMul: "rmul",
	OpPipe: "pipe",
}

func (k OpKind) String() string {
	if k < 0 || k >= OpCount {
		return "invalid"
	}
	return opNames[k]
}

var opByName = func() map[string]OpKind {
	m := make(map[string]OpKind, OpCount)
	for k, name := range opNames {
		m[name] = OpKind(k)
	}
	return m
}()

// LookupOperator resolves an operator name from an impl block.
func LookupOperator(name string) (OpKind, bool) {
	k, ok := opByName[name]
	return k, ok
}

// ReverseOf returns the commuted fallback tried on the right operand when the
// left operand's shape has no handler, and whether one exists.
func ReverseOf(k OpKind) (OpKind, bool) {
	switch k {
	case OpAdd:
		return OpRAdd, true
	case OpMul:
		return OpRMul, true
	}
	return 0, false
}
