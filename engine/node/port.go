package node

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
)

// Type is the type of a port. An edge may only connect ports of the same type.
type Type int

const (
	TypeEmpty Type = iota
	TypeInt
	TypeFloat
	TypeVec2
	TypeVec3
	TypeVec4
	TypeImage
	TypeAudio
)

var typeNames = [...]string{"empty", "int", "float", "vec2", "vec3", "vec4", "image", "audio"}

// String returns the lower-case type name.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return TypeEmpty, fmt.Errorf("node: unknown port type %q", s)
}

// Components returns the number of float components of a vector type, 1 for scalars and 0 otherwise.
func (t Type) Components() int {
	switch t {
	case TypeInt, TypeFloat:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	default:
		return 0
	}
}

// IsControl reports whether ports of this type hold a value packed into the material block.
func (t Type) IsControl() bool {
	return t.Components() > 0
}

// wgslType returns the WGSL member type of a control type.
func (t Type) wgslType() string {
	switch t {
	case TypeInt:
		return shader.InputInt.WGSLType()
	case TypeFloat:
		return shader.InputFloat.WGSLType()
	case TypeVec2:
		return shader.InputVec2.WGSLType()
	case TypeVec3:
		return shader.InputVec3.WGSLType()
	case TypeVec4:
		return shader.InputVec4.WGSLType()
	default:
		return ""
	}
}

// typeOfInput maps a reflected shader input to a port type.
func typeOfInput(t shader.InputType) Type {
	switch t {
	case shader.InputInt:
		return TypeInt
	case shader.InputFloat:
		return TypeFloat
	case shader.InputVec2:
		return TypeVec2
	case shader.InputVec3:
		return TypeVec3
	case shader.InputVec4:
		return TypeVec4
	default:
		return TypeImage
	}
}

// Port is a typed input or output slot of a node.
//
// Control ports hold their current Value; audio ports hold the last received block.
// Ports do not know their edges: the graph indexes edges by port.
type Port struct {
	// Name is the shader variable or ISF input name, empty for built-in ports.
	Name string
	// Type is the port type.
	Type Type
	// Value is the current value of a control port, always of the kind matching Type.
	Value Value
	// Audio is the sample buffer of an audio port.
	Audio *AudioData
}

// newPort creates a port holding the zero value of t.
func newPort(name string, t Type) *Port {
	p := &Port{Name: name, Type: t, Value: zeroValue(t)}
	if t == TypeAudio {
		p.Audio = &AudioData{}
	}
	return p
}
