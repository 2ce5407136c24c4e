package vm

import "fmt"

// Type is the discriminant of a Value.
type Type uint8

const (
	Undef Type = iota
	Int
	Float
	Str
	Ref
	Fn
	Dict
	Native
)

func (t Type) String() string {
	switch t {
	case Undef:
		return "UNDEF"
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case Str:
		return "STR"
	case Ref:
		return "REF"
	case Fn:
		return "FN"
	case Dict:
		return "DICT"
	case Native:
		return "NATIVE"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// NativeFunc is a host callable. It receives unwrapped argument payloads
// (int32, float32, string, ...) and never returns a value observable to
// bytecode: every CALL against a NATIVE value pushes UNDEF.
type NativeFunc func(args []any)

// Value is the tagged (Type, payload) pair every stack slot and heap cell
// holds.
type Value struct {
	typ     Type
	payload any
}

func UndefValue() Value { return Value{typ: Undef} }

func IntValue(v int32) Value { return Value{typ: Int, payload: v} }

func FloatValue(v float32) Value { return Value{typ: Float, payload: v} }

func StrValue(v string) Value { return Value{typ: Str, payload: v} }

func RefValue(r Reference) Value { return Value{typ: Ref, payload: r} }

func FnValue(f Function) Value { return Value{typ: Fn, payload: f} }

func DictValue(d *DictObject) Value { return Value{typ: Dict, payload: d} }

func NativeValue(fn NativeFunc) Value { return Value{typ: Native, payload: fn} }

func (v Value) Type() Type { return v.typ }

// String renders a Value the way the original interpreter's debug trace
// does ("TYPE payload"), used by the zap-backed per-opcode trace (trace.go).
func (v Value) String() string {
	switch v.typ {
	case Undef:
		return "UNDEF"
	default:
		return fmt.Sprintf("%s %v", v.typ, v.payload)
	}
}

func (v Value) IsUndef() bool { return v.typ == Undef }

func (v Value) Int() (int32, error) {
	if v.typ != Int {
		return 0, fmt.Errorf("%w: expected INT, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(int32), nil
}

func (v Value) Float() (float32, error) {
	if v.typ != Float {
		return 0, fmt.Errorf("%w: expected FLOAT, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(float32), nil
}

func (v Value) Str() (string, error) {
	if v.typ != Str {
		return "", fmt.Errorf("%w: expected STR, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(string), nil
}

func (v Value) Reference() (Reference, error) {
	if v.typ != Ref {
		return Reference{}, fmt.Errorf("%w: expected REF, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(Reference), nil
}

func (v Value) Function() (Function, error) {
	if v.typ != Fn {
		return Function{}, fmt.Errorf("%w: expected FN, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(Function), nil
}

func (v Value) DictObject() (*DictObject, error) {
	if v.typ != Dict {
		return nil, fmt.Errorf("%w: expected DICT, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(*DictObject), nil
}

func (v Value) Native() (NativeFunc, error) {
	if v.typ != Native {
		return nil, fmt.Errorf("%w: expected NATIVE, got %s", ErrTypeMismatch, v.typ)
	}
	return v.payload.(NativeFunc), nil
}

// RawPayload exposes the unwrapped payload, the shape a NATIVE call
// receives its arguments in: unwrapped payload values, not wrapped Values.
func (v Value) RawPayload() any {
	return v.payload
}

// Truthy implements the branch condition: nonzero number, nonempty
// string, any non-null reference. Used by JUMPIF and by the logic
// handler group (AND/OR/NOT).
func (v Value) Truthy() bool {
	switch v.typ {
	case Undef:
		return false
	case Int:
		return v.payload.(int32) != 0
	case Float:
		return v.payload.(float32) != 0
	case Str:
		return v.payload.(string) != ""
	case Ref:
		return !v.payload.(Reference).IsDangling()
	default:
		return true
	}
}

// DictObject is the payload behind a DICT value: a mapping from a
// string-or-int key to a REF-typed Value pointing into the heap. Key
// ordering has no observable effect on program semantics (only heap slot
// order, tracked by the heap itself, does); a plain map is sufficient.
type DictObject struct {
	entries map[any]Value
}

func NewDictObject() *DictObject {
	return &DictObject{entries: make(map[any]Value)}
}

func (d *DictObject) Get(key any) (Value, bool) {
	v, ok := d.entries[key]
	return v, ok
}

func (d *DictObject) Set(key any, v Value) {
	d.entries[key] = v
}

func (d *DictObject) Len() int {
	return len(d.entries)
}
