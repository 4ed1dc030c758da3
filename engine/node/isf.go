package node

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
	"github.com/google/uuid"
)

// ISFInput is one entry of the INPUTS array of an ISF header.
type ISFInput struct {
	Name    string          `json:"NAME"`
	Type    string          `json:"TYPE"`
	Label   string          `json:"LABEL,omitempty"`
	Default json.RawMessage `json:"DEFAULT,omitempty"`
	Min     json.RawMessage `json:"MIN,omitempty"`
	Max     json.RawMessage `json:"MAX,omitempty"`
}

// ISFDescriptor is the JSON header of an ISF shader.
type ISFDescriptor struct {
	Description string     `json:"DESCRIPTION,omitempty"`
	Credit      string     `json:"CREDIT,omitempty"`
	Categories  []string   `json:"CATEGORIES,omitempty"`
	Inputs      []ISFInput `json:"INPUTS"`
}

// ParseISF splits an ISF shader into its header and its WGSL body.
// The header is a JSON object in a leading /* */ comment.
//
// Parameters:
//   - source: the ISF shader
//
// Returns:
//   - ISFDescriptor: the decoded header
//   - string: the WGSL that follows the header
//   - error: error if the header is missing or is not valid JSON
func ParseISF(source string) (ISFDescriptor, string, error) {
	var desc ISFDescriptor

	trimmed := strings.TrimLeft(source, " \t\r\n")
	if !strings.HasPrefix(trimmed, "/*") {
		return desc, "", fmt.Errorf("node: isf: missing /*{ }*/ header")
	}
	end := strings.Index(trimmed, "*/")
	if end < 0 {
		return desc, "", fmt.Errorf("node: isf: unterminated header")
	}
	if err := json.Unmarshal([]byte(trimmed[2:end]), &desc); err != nil {
		return desc, "", fmt.Errorf("node: isf: header: %w", err)
	}
	return desc, trimmed[end+2:], nil
}

// isfPortType maps an ISF input type. audioFFT inputs have no port.
func isfPortType(t string) (Type, bool, error) {
	switch t {
	case "float":
		return TypeFloat, true, nil
	case "long", "event", "bool":
		return TypeInt, true, nil
	case "point2D":
		return TypeVec2, true, nil
	case "point3D":
		return TypeVec3, true, nil
	case "color":
		return TypeVec4, true, nil
	case "image":
		return TypeImage, true, nil
	case "audio":
		return TypeAudio, true, nil
	case "audioFFT":
		return TypeEmpty, false, nil
	default:
		return TypeEmpty, false, fmt.Errorf("node: isf: unknown input type %q", t)
	}
}

// isfDefault decodes the DEFAULT of an input into a value for a port of type t.
func isfDefault(t Type, raw json.RawMessage) (Value, bool) {
	if len(raw) == 0 {
		return Value{}, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, false
	}
	switch d := v.(type) {
	case float64:
		if t == TypeInt {
			return Int(int32(d)), true
		}
		return Float(float32(d)), true
	case bool:
		return Bool(d), true
	case []any:
		l := make([]Value, 0, len(d))
		for _, e := range d {
			if f, ok := e.(float64); ok {
				l = append(l, Float(float32(f)))
			}
		}
		return List(l...), true
	default:
		return Value{}, false
	}
}

// isfPrelude generates the declarations an ISF body is written against: the time block as
// timing, the material block holding every control input, then one texture and sampler per
// image input followed by one per audio input.
func isfPrelude(ports []*Port) string {
	var b strings.Builder
	b.WriteString("//@oxy:include varyings\n")
	b.WriteString("//@oxy:include process\n")
	b.WriteString("//@oxy:group 0 1 storage_uniform timing process\n\n")

	controls := 0
	for _, p := range ports {
		if p.Type.IsControl() {
			controls++
		}
	}
	if controls > 0 {
		b.WriteString("struct Material {\n")
		for _, p := range ports {
			if p.Type.IsControl() {
				fmt.Fprintf(&b, "    %s: %s,\n", p.Name, p.Type.wgslType())
			}
		}
		b.WriteString("}\n\n")
		fmt.Fprintf(&b, "@group(0) @binding(%d) var<uniform> material: Material;\n", shader.MaterialBinding)
	}

	i := 0
	for _, want := range []Type{TypeImage, TypeAudio} {
		for _, p := range ports {
			if p.Type != want {
				continue
			}
			tex, smp := shader.SamplerBindings(i)
			fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: texture_2d<f32>;\n", tex, p.Name)
			fmt.Fprintf(&b, "@group(0) @binding(%d) var %sSampler: sampler;\n", smp, p.Name)
			i++
		}
	}
	return b.String()
}

// NewISFNode creates a node from an ISF shader whose body is WGSL. Ports follow the INPUTS
// of the header in order; DEFAULT values seed control ports and MAX fixes the sample count
// of audio inputs. The body refers to controls as material.<NAME>, to images and audio as
// <NAME> and <NAME>Sampler, and to the time block as timing.
//
// Parameters:
//   - source: the ISF shader
//   - options: optional builder options
//
// Returns:
//   - Node: the ISF node
//   - error: error if the header is invalid or the generated stage does not compile
func NewISFNode(source string, options ...NodeBuilderOption) (Node, error) {
	desc, body, err := ParseISF(source)
	if err != nil {
		return nil, err
	}

	var ports []*Port
	var audio []int
	for _, in := range desc.Inputs {
		t, ok, err := isfPortType(in.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p := newPort(in.Name, t)
		if v, ok := isfDefault(t, in.Default); ok {
			p.Value, _ = convert(t, p.Value, v)
		}
		if t == TypeAudio {
			var fixed float64
			if len(in.Max) > 0 && json.Unmarshal(in.Max, &fixed) == nil {
				p.Audio.FixedSize = int(fixed)
			}
			audio = append(audio, len(ports))
		}
		ports = append(ports, p)
	}

	frag, err := shader.Compile("isf", shader.StageFragment, isfPrelude(ports)+body)
	if err != nil {
		common.Logger().Warn("isf shader rejected", "err", err)
		return nil, err
	}

	n, err := newNode(KindISF, fullscreenVertex(), frag, ports, []*Port{newPort("", TypeImage)}, options...)
	if err != nil {
		return nil, err
	}
	n.source = source
	if len(audio) > 0 {
		n.ext = &audioExtension{node: n, ports: audio, state: make(map[uuid.UUID]*audioState)}
	}
	return n, nil
}

// audioState is the per-renderer payload of an audio extension.
type audioState struct {
	samplers []gpu.Sampler
	index    []int
	textures []gpu.Texture
	versions []uint64
}

// audioExtension uploads the audio ports of a node as R32F textures, one row per channel.
type audioExtension struct {
	node  *node
	ports []int

	mu    sync.Mutex
	state map[uuid.UUID]*audioState
}

var _ Extension = &audioExtension{}

func (a *audioExtension) CustomInit(rc RenderContext) error {
	st := &audioState{
		samplers: make([]gpu.Sampler, len(a.ports)),
		index:    make([]int, len(a.ports)),
		textures: make([]gpu.Texture, len(a.ports)),
		versions: make([]uint64, len(a.ports)),
	}
	for k, port := range a.ports {
		s, err := rc.Backend().CreateSampler(fmt.Sprintf("%s audio %d", a.node.label, port), gpu.SamplerDescriptor{
			MinFilter: gpu.FilterNearest,
			MagFilter: gpu.FilterNearest,
			AddressU:  gpu.AddressClampToEdge,
			AddressV:  gpu.AddressClampToEdge,
		})
		if err != nil {
			st.release()
			return fmt.Errorf("node: audio sampler: %w", err)
		}
		st.samplers[k] = s
		st.index[k] = rc.AddSampler(s, rc.EmptyTexture())
	}

	a.mu.Lock()
	a.state[rc.RendererID()] = st
	a.mu.Unlock()
	return nil
}

func (a *audioExtension) CustomUpdate(rc RenderContext, batch gpu.UpdateBatch) error {
	a.mu.Lock()
	st := a.state[rc.RendererID()]
	a.mu.Unlock()
	if st == nil {
		return nil
	}

	for k, port := range a.ports {
		data := a.node.inputs[port].Audio
		size := gpu.Size{Width: data.SamplesPerChannel(), Height: data.Channels}

		changed := false
		if tex := st.textures[k]; tex != nil && tex.Size() != size {
			tex.Release()
			st.textures[k] = nil
			changed = true
		}
		if st.textures[k] == nil && !size.Empty() {
			tex, err := rc.Backend().CreateTexture(fmt.Sprintf("%s audio %d", a.node.label, port), size, gpu.FormatR32F, false)
			if err != nil {
				return fmt.Errorf("node: audio texture: %w", err)
			}
			st.textures[k] = tex
			st.versions[k] = 0
			changed = true
		}
		if changed {
			if st.textures[k] != nil {
				rc.SetSamplerTexture(st.index[k], st.textures[k])
			} else {
				rc.SetSamplerTexture(st.index[k], rc.EmptyTexture())
			}
		}

		if st.textures[k] != nil && st.versions[k] != data.Version {
			buf := make([]byte, len(data.Samples)*4)
			for i, s := range data.Samples {
				binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
			}
			batch.UploadTexture(st.textures[k], buf, size.Width*4)
			st.versions[k] = data.Version
		}
	}
	return nil
}

func (a *audioExtension) CustomRelease(rc RenderContext) {
	a.mu.Lock()
	st := a.state[rc.RendererID()]
	delete(a.state, rc.RendererID())
	a.mu.Unlock()

	if st != nil {
		st.release()
	}
}

func (s *audioState) release() {
	for i, t := range s.textures {
		if t != nil {
			t.Release()
			s.textures[i] = nil
		}
	}
	for i, smp := range s.samplers {
		if smp != nil {
			smp.Release()
			s.samplers[i] = nil
		}
	}
}
