package node

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/google/uuid"
)

var (
	//go:embed assets/video_yuv420.frag.wgsl
	yuv420Source string
	//go:embed assets/video_rgb0.frag.wgsl
	rgb0Source string
)

var (
	yuv420Fragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("video yuv420p", shader.StageFragment, yuv420Source)
	})
	rgb0Fragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("video rgb0", shader.StageFragment, rgb0Source)
	})
)

// videoPlane describes one texture of a pixel format.
type videoPlane struct {
	size   gpu.Size
	format gpu.TextureFormat
}

// planesOf returns the textures frames of format are uploaded into.
func planesOf(format video.PixelFormat, width, height int) ([]videoPlane, error) {
	switch format {
	case video.PixelFormatYUV420P:
		chroma := gpu.Size{Width: (width + 1) / 2, Height: (height + 1) / 2}
		return []videoPlane{
			{size: gpu.Size{Width: width, Height: height}, format: gpu.FormatR8},
			{size: chroma, format: gpu.FormatR8},
			{size: chroma, format: gpu.FormatR8},
		}, nil
	case video.PixelFormatRGB0:
		return []videoPlane{{size: gpu.Size{Width: width, Height: height}, format: gpu.FormatRGBA8}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, format)
	}
}

// NewVideoNode creates a source node drawing the frames of a decoder. A frame is read from
// the decoder once per processed tick and uploaded by each renderer that has not seen it.
//
// Parameters:
//   - dec: the decoder, closed by Release
//   - path: the media path, kept for serialization
//   - options: optional builder options
//
// Returns:
//   - Node: the video node
//   - error: ErrUnsupportedPixelFormat if the decoder's frames cannot be sampled
func NewVideoNode(dec video.Decoder, path string, options ...NodeBuilderOption) (Node, error) {
	planes, err := planesOf(dec.PixelFormat(), dec.Width(), dec.Height())
	if err != nil {
		return nil, err
	}

	frag := rgb0Fragment()
	if dec.PixelFormat() == video.PixelFormatYUV420P {
		frag = yuv420Fragment()
	}

	n, err := newNode(KindVideo, fullscreenVertex(), frag, nil, []*Port{newPort("", TypeImage)}, options...)
	if err != nil {
		return nil, err
	}
	n.path = path

	ext := &videoExtension{node: n, decoder: dec, planes: planes, state: make(map[uuid.UUID]*videoState)}
	n.ext = ext
	n.onProcess = func(Token) { ext.fetch() }
	n.onRelease = func() {
		if err := dec.Close(); err != nil {
			common.Logger().Warn("video decoder close failed", "node", n.label, "err", err)
		}
	}
	return n, nil
}

// videoState is the per-renderer payload of a video extension.
type videoState struct {
	samplers []gpu.Sampler
	textures []gpu.Texture
	uploaded uint64
}

// videoExtension uploads decoded frames into one texture per plane.
type videoExtension struct {
	node    *node
	decoder video.Decoder
	planes  []videoPlane

	frame   *video.Frame
	version uint64

	mu    sync.Mutex
	state map[uuid.UUID]*videoState
}

var _ Extension = &videoExtension{}

// fetch reads the next frame. The previous frame stays current at the end of the stream.
func (v *videoExtension) fetch() {
	f, err := v.decoder.ReadFrame()
	if err != nil {
		if errors.Is(err, video.ErrEndOfStream) {
			common.Logger().Debug("video end of stream", "node", v.node.label)
		} else {
			common.Logger().Warn("video decode failed", "node", v.node.label, "err", err)
		}
		return
	}
	v.frame = f
	v.version++
}

func (v *videoExtension) CustomInit(rc RenderContext) error {
	st := &videoState{}
	for i, p := range v.planes {
		label := fmt.Sprintf("%s plane %d", v.node.label, i)
		tex, err := rc.Backend().CreateTexture(label, p.size, p.format, false)
		if err != nil {
			st.release()
			return fmt.Errorf("node: video texture: %w", err)
		}
		st.textures = append(st.textures, tex)

		s, err := rc.Backend().CreateSampler(label, gpu.SamplerDescriptor{
			MinFilter: gpu.FilterLinear,
			MagFilter: gpu.FilterLinear,
			AddressU:  gpu.AddressClampToEdge,
			AddressV:  gpu.AddressClampToEdge,
		})
		if err != nil {
			st.release()
			return fmt.Errorf("node: video sampler: %w", err)
		}
		st.samplers = append(st.samplers, s)
		rc.AddSampler(s, tex)
	}

	v.mu.Lock()
	v.state[rc.RendererID()] = st
	v.mu.Unlock()
	return nil
}

func (v *videoExtension) CustomUpdate(rc RenderContext, batch gpu.UpdateBatch) error {
	v.mu.Lock()
	st := v.state[rc.RendererID()]
	v.mu.Unlock()
	if st == nil || v.frame == nil || st.uploaded == v.version {
		return nil
	}

	if len(v.frame.Planes) < len(st.textures) {
		return fmt.Errorf("node: video frame has %d planes, expected %d", len(v.frame.Planes), len(st.textures))
	}
	for i, tex := range st.textures {
		batch.UploadTexture(tex, v.frame.Planes[i], v.frame.Strides[i])
	}
	st.uploaded = v.version
	return nil
}

func (v *videoExtension) CustomRelease(rc RenderContext) {
	v.mu.Lock()
	st := v.state[rc.RendererID()]
	delete(v.state, rc.RendererID())
	v.mu.Unlock()

	if st != nil {
		st.release()
	}
}

func (s *videoState) release() {
	for _, t := range s.textures {
		t.Release()
	}
	for _, smp := range s.samplers {
		smp.Release()
	}
	s.textures = nil
	s.samplers = nil
}
