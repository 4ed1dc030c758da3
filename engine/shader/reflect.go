package shader

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
)

// ErrShaderInputs is returned when a fragment stage declares inputs the renderer cannot bind.
var ErrShaderInputs = errors.New("shader: unsupported inputs")

// InputType is the type of a reflected shader input.
type InputType int

const (
	InputFloat InputType = iota
	InputInt
	InputVec2
	InputVec3
	InputVec4
	InputImage
)

// WGSLType returns the WGSL type an input of this type occupies in a uniform block.
// Images have no uniform representation and return "".
func (t InputType) WGSLType() string {
	switch t {
	case InputFloat:
		return "f32"
	case InputInt:
		return "i32"
	case InputVec2:
		return "vec2<f32>"
	case InputVec3:
		return "vec3<f32>"
	case InputVec4:
		return "vec4<f32>"
	default:
		return ""
	}
}

// wgslInputTypeMap maps material member types to input types.
var wgslInputTypeMap = map[string]InputType{
	"f32":       InputFloat,
	"i32":       InputInt,
	"u32":       InputInt,
	"vec2<f32>": InputVec2,
	"vec2f":     InputVec2,
	"vec3<f32>": InputVec3,
	"vec3f":     InputVec3,
	"vec4<f32>": InputVec4,
	"vec4f":     InputVec4,
}

// Input is one reflected input of a fragment stage.
type Input struct {
	// Name is the WGSL variable or member name.
	Name string
	// Type is the input type.
	Type InputType
	// Binding is the texture slot for images, -1 for material members.
	Binding int
	// Offset is the byte offset in the material block for material members.
	Offset uint64
}

// reflectInputs derives the ordered input list of a fragment stage: every sampled
// texture of group 0 in binding order, then every member of the struct bound at the
// material slot in declaration order.
//
// Parameters:
//   - source: pre-processed WGSL source
//
// Returns:
//   - []Input: the inputs
//   - uint64: size of the material block, 0 if the stage has none
//   - error: ErrShaderInputs wrapped with the offending declaration
func reflectInputs(source string) ([]Input, uint64, error) {
	decls := parseBindings(source)
	inputs := make([]Input, 0, len(decls))

	var material *BindingDecl
	textures := 0
	for i := range decls {
		d := decls[i]
		if d.Group != 0 {
			return nil, 0, fmt.Errorf("%w: %s uses group %d, only group 0 is bound", ErrShaderInputs, d.Name, d.Group)
		}
		switch {
		case d.Binding == MaterialBinding:
			material = &decls[i]
		case d.Binding < FirstSamplerBinding:
			continue
		case d.Kind == gpu.BindingTexture:
			want, _ := SamplerBindings(textures)
			if uint32(d.Binding) != want {
				return nil, 0, fmt.Errorf("%w: texture %s at binding %d, expected %d", ErrShaderInputs, d.Name, d.Binding, want)
			}
			inputs = append(inputs, Input{Name: d.Name, Type: InputImage, Binding: d.Binding})
			textures++
		}
	}

	if material == nil {
		return inputs, 0, nil
	}
	if material.Kind != gpu.BindingUniformBuffer {
		return nil, 0, fmt.Errorf("%w: binding %d must be a uniform block", ErrShaderInputs, MaterialBinding)
	}

	structs := parseStructBlocks(stripComments(source))
	idx := slices.IndexFunc(structs, func(ps parsedStruct) bool { return ps.name == material.Type })
	if idx < 0 {
		return nil, 0, fmt.Errorf("%w: material type %s is not a struct", ErrShaderInputs, material.Type)
	}
	ps := structs[idx]
	layout, offsets, ok := computeStructLayout(ps, computeStructSizes(structs))
	if !ok {
		return nil, 0, fmt.Errorf("%w: cannot lay out material struct %s", ErrShaderInputs, ps.name)
	}
	for i, f := range ps.fields {
		t, ok := wgslInputTypeMap[f.typeName]
		if !ok {
			return nil, 0, fmt.Errorf("%w: material member %s has type %s", ErrShaderInputs, f.name, f.typeName)
		}
		inputs = append(inputs, Input{Name: f.name, Type: t, Binding: -1, Offset: offsets[i]})
	}
	return inputs, layout.size, nil
}

// UniformLayout lays out a list of WGSL member types as a uniform struct.
//
// Parameters:
//   - types: WGSL type names in member order
//
// Returns:
//   - []uint64: byte offset of each member
//   - uint64: struct size, rounded to its alignment
//   - error: error if a type is unknown
func UniformLayout(types []string) ([]uint64, uint64, error) {
	ps := parsedStruct{name: "Material", fields: make([]parsedField, len(types))}
	for i, t := range types {
		ps.fields[i] = parsedField{name: fmt.Sprintf("m%d", i), typeName: t, location: -1}
	}
	layout, offsets, ok := computeStructLayout(ps, nil)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown member type in %v", ErrShaderInputs, types)
	}
	return offsets, layout.size, nil
}
