package pipeline

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResizeWithinMax_NoopWhenWithinBound(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 30, 20))
	got := resizeWithinMax(img, 32)

	// 已在界内：原样返回，不是拷贝
	assert.Same(t, img, got)
}

func TestResizeWithinMax_NeverUpscales(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	got := resizeWithinMax(img, 1024)

	assert.Same(t, img, got)
	assert.Equal(t, 8, got.Bounds().Dx())
}

func TestResizeWithinMax_ShrinksLongestSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		w, h    int
		bound   int
		wantW   int
		wantH   int
	}{
		{"landscape", 200, 100, 50, 50, 25},
		{"portrait", 100, 200, 50, 25, 50},
		{"square", 128, 128, 32, 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := resizeWithinMax(img, tt.bound)

			assert.Equal(t, tt.wantW, got.Bounds().Dx())
			assert.Equal(t, tt.wantH, got.Bounds().Dy())
			assert.LessOrEqual(t, max(got.Bounds().Dx(), got.Bounds().Dy()), tt.bound)
		})
	}
}

func TestResizeWithinMax_PreservesAspectRatio(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 300, 199))
	got := resizeWithinMax(img, 64)

	origRatio := 300.0 / 199.0
	gotRatio := float64(got.Bounds().Dx()) / float64(got.Bounds().Dy())
	assert.InDelta(t, origRatio, gotRatio, 0.1, "aspect ratio drifted beyond rounding tolerance")
	assert.LessOrEqual(t, max(got.Bounds().Dx(), got.Bounds().Dy()), 64)
}

func TestResizeWithinMax_Idempotent(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	once := resizeWithinMax(img, 50)
	twice := resizeWithinMax(once, 50)

	assert.Same(t, once, twice)
}
