package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvert(t *testing.T) {
	cases := []struct {
		name    string
		typ     Type
		cur     Value
		in      Value
		want    Value
		applied bool
	}{
		{"int to float", TypeFloat, Float(0), Int(3), Float(3), true},
		{"bool to float", TypeFloat, Float(0), Bool(true), Float(1), true},
		{"vector to float uses x", TypeFloat, Float(0), Vec3(0.5, 2, 3), Float(0.5), true},
		{"list to float uses first", TypeFloat, Float(0), List(Float(7), Float(8)), Float(7), true},
		{"empty list ignored", TypeFloat, Float(1), List(), Float(1), false},
		{"string ignored", TypeFloat, Float(1), String("x"), Float(1), false},
		{"impulse ignored", TypeVec4, Vec4(1, 2, 3, 4), Impulse(), Vec4(1, 2, 3, 4), false},
		{"float to int truncates", TypeInt, Int(0), Float(2.9), Int(2), true},
		{"bool to int", TypeInt, Int(0), Bool(true), Int(1), true},
		{"scalar broadcasts", TypeVec3, Vec3(0, 0, 0), Float(0.25), Vec3(0.25, 0.25, 0.25), true},
		{"short vector keeps tail", TypeVec4, Vec4(1, 2, 3, 4), Vec2(9, 8), Vec4(9, 8, 3, 4), true},
		{"long vector truncates", TypeVec2, Vec2(0, 0), Vec4(1, 2, 3, 4), Vec2(1, 2), true},
		{"list fills components", TypeVec4, Vec4(1, 1, 1, 1), List(Float(0.5), Int(2)), Vec4(0.5, 2, 1, 1), true},
		{"image port ignores values", TypeImage, Value{}, Float(1), Value{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := convert(tc.typ, tc.cur, tc.in)
			assert.Equal(t, tc.applied, ok)
			assert.True(t, tc.want.Equal(got), "got %+v want %+v", got, tc.want)
		})
	}
}

func TestValueEqual(t *testing.T) {
	assert.True(t, List(Float(1), Vec2(1, 2)).Equal(List(Float(1), Vec2(1, 2))))
	assert.False(t, List(Float(1)).Equal(List(Float(2))))
	assert.False(t, Int(1).Equal(Float(1)))
}

func TestAudioDataSet(t *testing.T) {
	a := &AudioData{}
	a.Set([][]float32{{1, 2, 3}, {4}})
	assert.Equal(t, 2, a.Channels)
	assert.Equal(t, 3, a.SamplesPerChannel())
	assert.Equal(t, []float32{1, 2, 3, 4, 0, 0}, a.Samples)
	assert.Equal(t, uint64(1), a.Version)

	a.FixedSize = 2
	a.Set([][]float32{{1, 2, 3}})
	assert.Equal(t, []float32{1, 2}, a.Samples)
	assert.Equal(t, uint64(2), a.Version)
}

func TestTypeAndKindNames(t *testing.T) {
	for ty := TypeEmpty; ty <= TypeAudio; ty++ {
		parsed, err := ParseType(ty.String())
		assert.NoError(t, err)
		assert.Equal(t, ty, parsed)
	}
	_, err := ParseType("mat4")
	assert.Error(t, err)

	for k := KindColor; k <= KindVideo; k++ {
		parsed, err := ParseKind(k.String())
		assert.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err = ParseKind("camera")
	assert.Error(t, err)
}
