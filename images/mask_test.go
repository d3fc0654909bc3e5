package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMaskComposite(t *testing.T) {
	masks := [][][]float32{
		{
			{0.9, 0.1},
			{0.0, 0.0},
		},
		{
			{0.0, 0.0},
			{0.2, 0.8},
		},
	}

	t.Run("Native resolution", func(t *testing.T) {
		img := RenderMaskComposite(masks, 0.5, Size{Width: 2, Height: 2})
		require.NotNil(t, img)

		gray, ok := img.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, uint8(255), gray.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(0), gray.GrayAt(1, 0).Y)
		assert.Equal(t, uint8(0), gray.GrayAt(0, 1).Y)
		assert.NotZero(t, gray.GrayAt(1, 1).Y)
		assert.NotEqual(t, gray.GrayAt(0, 0).Y, gray.GrayAt(1, 1).Y)
	})

	t.Run("Scaled to original shape", func(t *testing.T) {
		img := RenderMaskComposite(masks, 0.5, Size{Width: 8, Height: 6})
		require.NotNil(t, img)
		assert.Equal(t, 8, img.Bounds().Dx())
		assert.Equal(t, 6, img.Bounds().Dy())
	})

	t.Run("Nothing to render", func(t *testing.T) {
		assert.Nil(t, RenderMaskComposite(nil, 0.5, Size{Width: 8, Height: 6}))
		assert.Nil(t, RenderMaskComposite(masks, 0.5, Size{}))
	})
}
