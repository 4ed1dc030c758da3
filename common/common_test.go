package common

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, "a", Coalesce("a", "b"))
}

func TestStableTopoSortUsesIndexTieBreak(t *testing.T) {
	// 3 -> 0, 2 -> 1; items 0 and 1 wait on later items.
	deps := map[int][]int{0: {3}, 1: {2}}
	order, ok := StableTopoSort(4, func(i int) []int { return deps[i] })
	require.True(t, ok)
	assert.Equal(t, []int{2, 1, 3, 0}, order)
}

func TestStableTopoSortIsDeterministic(t *testing.T) {
	deps := map[int][]int{4: {0, 1}, 2: {4}, 3: {1}}
	first, _ := StableTopoSort(5, func(i int) []int { return deps[i] })
	second, _ := StableTopoSort(5, func(i int) []int { return deps[i] })
	assert.Equal(t, first, second)
	assert.Equal(t, []int{0, 1, 3, 4, 2}, first)
}

func TestStableTopoSortReportsCycles(t *testing.T) {
	deps := map[int][]int{0: {1}, 1: {0}}
	order, ok := StableTopoSort(3, func(i int) []int { return deps[i] })
	assert.False(t, ok)
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestSetLoggerNilRestoresSilentLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("hello")
	assert.Contains(t, buf.String(), "hello")

	SetLogger(nil)
	buf.Reset()
	Logger().Info("quiet")
	assert.Empty(t, buf.String())
	assert.NotNil(t, Logger())
}

func TestDecodeImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	staged, err := DecodeImage(buf.Bytes(), "")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), staged.Width)
	assert.Equal(t, uint32(1), staged.Height)
	assert.Equal(t, uint32(8), staged.BytesPerRow())
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, staged.Pixels)

	_, err = DecodeImage(nil, "")
	assert.Error(t, err)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(16), AlignUp(12, 16))
	assert.Equal(t, uint64(16), AlignUp(16, 16))
	assert.Equal(t, uint64(0), AlignUp(0, 4))
}

func TestIdentity(t *testing.T) {
	m := make([]float32, 16)
	for i := range m {
		m[i] = 7
	}
	Identity(m)
	for i, v := range m {
		if i%5 == 0 {
			assert.Equal(t, float32(1), v, "diagonal %d", i)
		} else {
			assert.Zero(t, v, "element %d", i)
		}
	}
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32(nil)))
	b := SliceToBytes([]uint32{1, 2})
	assert.Len(t, b, 8)
	assert.Equal(t, binary.NativeEndian.Uint32(b[4:]), uint32(2))
}
