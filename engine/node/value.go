package node

import "slices"

// ValueKind is the kind of a control value received from the host.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueImpulse
	ValueInt
	ValueFloat
	ValueBool
	ValueChar
	ValueString
	ValueVec2
	ValueVec3
	ValueVec4
	ValueList
)

// Value is a control value. Only the fields matching Kind are meaningful.
type Value struct {
	Kind ValueKind
	I    int32
	F    float32
	B    bool
	C    rune
	S    string
	V    [4]float32
	L    []Value
}

// Impulse returns a value that carries no data.
func Impulse() Value { return Value{Kind: ValueImpulse} }

// Int returns an integer value.
func Int(i int32) Value { return Value{Kind: ValueInt, I: i} }

// Float returns a float value.
func Float(f float32) Value { return Value{Kind: ValueFloat, F: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: ValueBool, B: b} }

// Char returns a character value.
func Char(c rune) Value { return Value{Kind: ValueChar, C: c} }

// String returns a string value.
func String(s string) Value { return Value{Kind: ValueString, S: s} }

// Vec2 returns a 2-component vector.
func Vec2(x, y float32) Value { return Value{Kind: ValueVec2, V: [4]float32{x, y}} }

// Vec3 returns a 3-component vector.
func Vec3(x, y, z float32) Value { return Value{Kind: ValueVec3, V: [4]float32{x, y, z}} }

// Vec4 returns a 4-component vector.
func Vec4(x, y, z, w float32) Value { return Value{Kind: ValueVec4, V: [4]float32{x, y, z, w}} }

// List returns a list value.
func List(values ...Value) Value { return Value{Kind: ValueList, L: values} }

// zeroValue returns the value a fresh port of type t holds.
func zeroValue(t Type) Value {
	switch t {
	case TypeInt:
		return Int(0)
	case TypeFloat:
		return Float(0)
	case TypeVec2:
		return Value{Kind: ValueVec2}
	case TypeVec3:
		return Value{Kind: ValueVec3}
	case TypeVec4:
		return Value{Kind: ValueVec4}
	default:
		return Value{}
	}
}

// components returns the number of vector components of v, 0 for non-vectors.
func (v Value) components() int {
	switch v.Kind {
	case ValueVec2:
		return 2
	case ValueVec3:
		return 3
	case ValueVec4:
		return 4
	default:
		return 0
	}
}

// Scalar converts v to a float. Vectors yield their first component.
//
// Returns:
//   - float32: the converted value
//   - bool: false for kinds without a numeric meaning
func (v Value) Scalar() (float32, bool) {
	switch v.Kind {
	case ValueInt:
		return float32(v.I), true
	case ValueFloat:
		return v.F, true
	case ValueBool:
		if v.B {
			return 1, true
		}
		return 0, true
	case ValueChar:
		return float32(v.C), true
	case ValueVec2, ValueVec3, ValueVec4:
		return v.V[0], true
	case ValueList:
		if len(v.L) == 0 {
			return 0, false
		}
		return v.L[0].Scalar()
	default:
		return 0, false
	}
}

// Equal reports whether two values are identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.I != o.I || v.F != o.F || v.B != o.B || v.C != o.C || v.S != o.S || v.V != o.V {
		return false
	}
	return slices.EqualFunc(v.L, o.L, Value.Equal)
}

// convert returns in converted for a port of type t whose current value is cur.
// Vector components the input does not provide keep their current value.
//
// Returns:
//   - Value: the new port value
//   - bool: false if in carries nothing the port can use
func convert(t Type, cur Value, in Value) (Value, bool) {
	switch in.Kind {
	case ValueNone, ValueImpulse, ValueString:
		return cur, false
	}

	switch t {
	case TypeFloat:
		f, ok := in.Scalar()
		if !ok {
			return cur, false
		}
		return Float(f), true
	case TypeInt:
		if in.Kind == ValueInt {
			return in, true
		}
		f, ok := in.Scalar()
		if !ok {
			return cur, false
		}
		return Int(int32(f)), true
	case TypeVec2, TypeVec3, TypeVec4:
		out := zeroValue(t)
		out.V = cur.V
		n := t.Components()
		switch {
		case in.components() > 0:
			copy(out.V[:n], in.V[:min(n, in.components())])
		case in.Kind == ValueList:
			used := false
			for i := 0; i < n && i < len(in.L); i++ {
				if f, ok := in.L[i].Scalar(); ok {
					out.V[i] = f
					used = true
				}
			}
			if !used {
				return cur, false
			}
		default:
			f, ok := in.Scalar()
			if !ok {
				return cur, false
			}
			for i := range n {
				out.V[i] = f
			}
		}
		return out, true
	default:
		return cur, false
	}
}
