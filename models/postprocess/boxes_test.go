package postprocess

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-predict/images"
	"github.com/nvr-ai/go-predict/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBoxes(t *testing.T) {
	labels := models.Labels{"person", "car"}
	shape := images.Size{Width: 200, Height: 100}

	tests := []struct {
		name     string
		raw      []RawDetection
		maxItems int
		want     []Box
		wantErr  error
	}{
		{
			name:     "No detections",
			raw:      nil,
			maxItems: 10,
			want:     []Box{},
		},
		{
			name: "Scaled to pixels",
			raw: []RawDetection{
				{ClassIndex: 1, Confidence: 0.9, Rect: images.Rect{X1: 0.125, Y1: 0.25, X2: 0.5, Y2: 0.75}},
			},
			maxItems: 10,
			want: []Box{
				{
					ClassIndex:     1,
					ClassName:      "car",
					Confidence:     0.9,
					Rect:           images.Rect{X1: 25, Y1: 25, X2: 100, Y2: 75},
					NormalizedRect: images.Rect{X1: 0.125, Y1: 0.25, X2: 0.5, Y2: 0.75},
				},
			},
		},
		{
			name: "Clamped to frame",
			raw: []RawDetection{
				{ClassIndex: 0, Confidence: 0.5, Rect: images.Rect{X1: -0.2, Y1: 0.5, X2: 1.5, Y2: 1}},
			},
			maxItems: 10,
			want: []Box{
				{
					ClassIndex:     0,
					ClassName:      "person",
					Confidence:     0.5,
					Rect:           images.Rect{X1: 0, Y1: 50, X2: 200, Y2: 100},
					NormalizedRect: images.Rect{X1: 0, Y1: 0.5, X2: 1, Y2: 1},
				},
			},
		},
		{
			name: "NaN coordinate clamped",
			raw: []RawDetection{
				{ClassIndex: 1, Confidence: 0.7, Rect: images.Rect{X1: math32.NaN(), Y1: 0.25, X2: 0.5, Y2: 0.5}},
			},
			maxItems: 10,
			want: []Box{
				{
					ClassIndex:     1,
					ClassName:      "car",
					Confidence:     0.7,
					Rect:           images.Rect{X1: 0, Y1: 25, X2: 100, Y2: 50},
					NormalizedRect: images.Rect{X1: 0, Y1: 0.25, X2: 0.5, Y2: 0.5},
				},
			},
		},
		{
			name: "Capped at max items",
			raw: []RawDetection{
				{ClassIndex: 0, Confidence: 0.9, Rect: images.Rect{X2: 1, Y2: 1}},
				{ClassIndex: 1, Confidence: 0.8, Rect: images.Rect{X2: 1, Y2: 1}},
				{ClassIndex: 0, Confidence: 0.7, Rect: images.Rect{X2: 1, Y2: 1}},
			},
			maxItems: 2,
			want: []Box{
				{ClassIndex: 0, ClassName: "person", Confidence: 0.9,
					Rect: images.Rect{X2: 200, Y2: 100}, NormalizedRect: images.Rect{X2: 1, Y2: 1}},
				{ClassIndex: 1, ClassName: "car", Confidence: 0.8,
					Rect: images.Rect{X2: 200, Y2: 100}, NormalizedRect: images.Rect{X2: 1, Y2: 1}},
			},
		},
		{
			name: "Unknown class keeps alignment",
			raw: []RawDetection{
				{ClassIndex: 7, Confidence: 0.6, Rect: images.Rect{X2: 0.5, Y2: 0.5}},
				{ClassIndex: 0, Confidence: 0.4, Rect: images.Rect{X2: 0.5, Y2: 0.5}},
			},
			maxItems: 0,
			want: []Box{
				{ClassIndex: 7, ClassName: "unknown", Confidence: 0.6,
					Rect: images.Rect{X2: 100, Y2: 50}, NormalizedRect: images.Rect{X2: 0.5, Y2: 0.5}},
				{ClassIndex: 0, ClassName: "person", Confidence: 0.4,
					Rect: images.Rect{X2: 100, Y2: 50}, NormalizedRect: images.Rect{X2: 0.5, Y2: 0.5}},
			},
			wantErr: ErrLabelIndexOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes, err := DecodeBoxes(tt.raw, labels, shape, tt.maxItems)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, boxes)
		})
	}
}

func TestDecodeOrientedBoxes(t *testing.T) {
	labels := models.Labels{"plane", "ship"}
	shape := images.Size{Width: 200, Height: 100}
	raw := []RawOrientedBox{
		{ClassIndex: 1, Confidence: 0.8, Box: images.OBB{CenterX: 0.5, CenterY: 0.5, Width: 0.2, Height: 0.1}},
		{ClassIndex: 0, Confidence: 0.7, Box: images.OBB{CenterX: 0.5, CenterY: 0.5, Width: 0.1, Height: 0.1, Angle: math32.Pi / 4}},
	}

	boxes, err := DecodeOrientedBoxes(raw, labels, shape, 1)
	require.NoError(t, err)
	require.Len(t, boxes, 1)

	box := boxes[0]
	assert.Equal(t, "ship", box.ClassName)
	assert.Equal(t, raw[0].Box, box.Box)

	bounds := box.Polygon.Bounds()
	assert.InDelta(t, 80, bounds.X1, 1e-3)
	assert.InDelta(t, 45, bounds.Y1, 1e-3)
	assert.InDelta(t, 120, bounds.X2, 1e-3)
	assert.InDelta(t, 55, bounds.Y2, 1e-3)
}

func TestDecodeOrientedBoxes_UnknownClass(t *testing.T) {
	boxes, err := DecodeOrientedBoxes(
		[]RawOrientedBox{{ClassIndex: -1, Confidence: 0.3, Box: images.OBB{CenterX: 0.5, CenterY: 0.5, Width: 0.1, Height: 0.1}}},
		models.Labels{"plane"},
		images.Size{Width: 64, Height: 64},
		5,
	)

	assert.True(t, errors.Is(err, ErrLabelIndexOutOfRange))
	require.Len(t, boxes, 1)
	assert.Equal(t, "unknown", boxes[0].ClassName)
}
