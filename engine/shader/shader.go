package shader

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
)

// ErrCompile wraps every compilation failure.
var ErrCompile = errors.New("shader: compile failed")

// Stage identifies the pipeline stage of a shader.
type Stage int

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota

	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the lower-case stage name.
func (s Stage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

// shader is the implementation of the Shader interface.
type shader struct {
	key          string
	source       string
	stage        Stage
	entryPoint   string
	spirv        []uint32
	inputs       []Input
	materialSize uint64
	vertexLayout gpu.VertexLayout
	bindings     []BindingDecl
}

// Shader is a pre-processed, validated and reflected WGSL stage.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and labels.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// Stage returns the stage of the shader.
	Stage() Stage

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "fs_main")
	EntryPoint() string

	// Binary returns the SPIR-V words produced by validation.
	//
	// Returns:
	//   - []uint32: SPIR-V code
	Binary() []uint32

	// Inputs returns the reflected inputs of a fragment stage: sampled textures first,
	// then material members. Vertex stages have no inputs.
	//
	// Returns:
	//   - []Input: the inputs in port order
	Inputs() []Input

	// MaterialSize returns the size of the material block, 0 when the stage declares none.
	MaterialSize() uint64

	// VertexLayout returns the interleaved layout of the vertex input struct of a vertex stage.
	VertexLayout() gpu.VertexLayout

	// Bindings returns every bound resource declaration, sorted by group and binding.
	Bindings() []BindingDecl

	// StageDescriptor returns the stage as handed to a gpu.Backend.
	StageDescriptor() gpu.ShaderStage
}

var _ Shader = &shader{}

// Compile pre-processes, validates and reflects WGSL source.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels
//   - stage: the stage the source provides an entry point for
//   - source: the raw WGSL source
//
// Returns:
//   - Shader: the compiled shader
//   - error: ErrCompile wrapped with the cause
func Compile(key string, stage Stage, source string) (Shader, error) {
	processed, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: pre-process: %w", ErrCompile, key, err)
	}

	s := &shader{
		key:    key,
		source: processed,
		stage:  stage,
	}

	s.entryPoint = parseEntryPoint(processed, stage)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("%w: %s: no @%s entry point", ErrCompile, key, stage)
	}

	s.bindings = parseBindings(processed)
	switch stage {
	case StageVertex:
		layout, ok := parseVertexLayout(processed)
		if !ok {
			return nil, fmt.Errorf("%w: %s: no vertex input struct", ErrCompile, key)
		}
		s.vertexLayout = layout
	case StageFragment:
		s.inputs, s.materialSize, err = reflectInputs(processed)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
		}
	}

	s.spirv, err = compileSPIRV(processed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
	}
	return s, nil
}

// MustCompile is like Compile but panics on failure. It is meant for the engine's built-in shaders.
func MustCompile(key string, stage Stage, source string) Shader {
	s, err := Compile(key, stage, source)
	if err != nil {
		panic(fmt.Sprintf("shader: %v", err))
	}
	return s
}

// CompileFile reads WGSL source from path and compiles it.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - stage: the stage the source provides an entry point for
//   - path: the file path to read WGSL source from
//
// Returns:
//   - Shader: the compiled shader
//   - error: error if the file cannot be read or compiled
func CompileFile(key string, stage Stage, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read source file %q: %w", path, err)
	}
	return Compile(key, stage, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Stage() Stage {
	return s.stage
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Binary() []uint32 {
	return s.spirv
}

func (s *shader) Inputs() []Input {
	return s.inputs
}

func (s *shader) MaterialSize() uint64 {
	return s.materialSize
}

func (s *shader) VertexLayout() gpu.VertexLayout {
	return s.vertexLayout
}

func (s *shader) Bindings() []BindingDecl {
	return s.bindings
}

func (s *shader) StageDescriptor() gpu.ShaderStage {
	return gpu.ShaderStage{
		Label:      s.key,
		Source:     s.source,
		EntryPoint: s.entryPoint,
		SPIRV:      s.spirv,
	}
}
