package postprocess

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-predict/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeypoints(t *testing.T) {
	// Two instances with two keypoints each.
	data := []float32{
		0.5, 0.25, 0.9, 0.25, 0.5, 0.8,
		0.75, 0.75, 0.1, 1, 0, 0.2,
	}
	shape := images.Size{Width: 200, Height: 100}

	sets, err := DecodeKeypoints(data, 2, shape, 0)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	assert.Equal(t, []images.Point{{X: 0.5, Y: 0.25}, {X: 0.25, Y: 0.5}}, sets[0].Normalized)
	assert.Equal(t, []images.Point{{X: 100, Y: 25}, {X: 50, Y: 50}}, sets[0].Pixels)
	assert.Equal(t, []float32{0.9, 0.8}, sets[0].Confidences)

	assert.Equal(t, []images.Point{{X: 150, Y: 75}, {X: 200, Y: 0}}, sets[1].Pixels)
	assert.Equal(t, []float32{0.1, 0.2}, sets[1].Confidences)
}

func TestDecodeKeypoints_Errors(t *testing.T) {
	shape := images.Size{Width: 10, Height: 10}

	tests := []struct {
		name        string
		data        []float32
		perInstance int
		maxItems    int
		wantLen     int
		wantErr     bool
	}{
		{name: "Empty buffer", data: nil, perInstance: 17, wantLen: 0},
		{name: "Ragged buffer", data: make([]float32, 10), perInstance: 1, wantErr: true},
		{name: "Zero keypoints", data: make([]float32, 6), perInstance: 0, wantErr: true},
		{name: "Capped", data: make([]float32, 12), perInstance: 1, maxItems: 3, wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, err := DecodeKeypoints(tt.data, tt.perInstance, shape, tt.maxItems)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedOutput))
			} else {
				require.NoError(t, err)
			}
			assert.NotNil(t, sets)
			assert.Len(t, sets, tt.wantLen)
		})
	}
}

func TestDecodeMasks(t *testing.T) {
	data := []float32{
		0.9, 0.1,
		0.1, 0.1,

		0.1, 0.1,
		0.1, 0.9,
	}
	shape := images.Size{Width: 4, Height: 4}

	mask, err := DecodeMasks(data, [3]int{2, 2, 2}, shape, 0)
	require.NoError(t, err)
	require.Len(t, mask.Instances, 2)
	assert.Equal(t, [][]float32{{0.9, 0.1}, {0.1, 0.1}}, mask.Instances[0])
	assert.Equal(t, [][]float32{{0.1, 0.1}, {0.1, 0.9}}, mask.Instances[1])

	require.NotNil(t, mask.Composite)
	assert.Equal(t, image.Rect(0, 0, 4, 4), mask.Composite.Bounds())

	// Instances are copies, not views into the engine buffer.
	data[0] = 0
	assert.Equal(t, float32(0.9), mask.Instances[0][0][0])
}

func TestDecodeMasks_Errors(t *testing.T) {
	shape := images.Size{Width: 4, Height: 4}

	mask, err := DecodeMasks(make([]float32, 7), [3]int{2, 2, 2}, shape, 0)
	assert.True(t, errors.Is(err, ErrMalformedOutput))
	assert.NotNil(t, mask.Instances)
	assert.Empty(t, mask.Instances)

	_, err = DecodeMasks(make([]float32, 4), [3]int{1, 0, 4}, shape, 0)
	assert.True(t, errors.Is(err, ErrMalformedOutput))

	mask, err = DecodeMasks(nil, [3]int{}, shape, 0)
	require.NoError(t, err)
	assert.Empty(t, mask.Instances)
	assert.Nil(t, mask.Composite)
}

func TestDecodeMasks_Capped(t *testing.T) {
	mask, err := DecodeMasks(make([]float32, 3*2*2), [3]int{3, 2, 2}, images.Size{Width: 2, Height: 2}, 1)
	require.NoError(t, err)
	assert.Len(t, mask.Instances, 1)
}

func TestDecodeMasks_Shapes(t *testing.T) {
	shape := images.Size{Width: 2, Height: 2}

	tests := []struct {
		name string
		data []float32
		dims [3]int
		want [][][]float32
	}{
		{
			name: "Single pixel instances",
			data: []float32{0.7, 0.2},
			dims: [3]int{2, 1, 1},
			want: [][][]float32{{{0.7}}, {{0.2}}},
		},
		{
			name: "Single row",
			data: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
			dims: [3]int{2, 1, 3},
			want: [][][]float32{{{0.1, 0.2, 0.3}}, {{0.4, 0.5, 0.6}}},
		},
		{
			name: "Single instance",
			data: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
			dims: [3]int{1, 3, 2},
			want: [][][]float32{{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask, err := DecodeMasks(tt.data, tt.dims, shape, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask.Instances)
		})
	}
}

func TestDecodeKeypoints_SingleKeypoint(t *testing.T) {
	data := []float32{
		0.5, 0.5, 0.9,
		0.25, 1, 0.3,
		0, 0.75, 0.6,
	}

	sets, err := DecodeKeypoints(data, 1, images.Size{Width: 40, Height: 20}, 2)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, []images.Point{{X: 20, Y: 10}}, sets[0].Pixels)
	assert.Equal(t, []images.Point{{X: 0.25, Y: 1}}, sets[1].Normalized)
	assert.Equal(t, []float32{0.3}, sets[1].Confidences)

	// Keypoints are read out of the buffer, not aliased to it.
	data[0] = 0
	assert.Equal(t, float32(0.5), sets[0].Normalized[0].X)
}
