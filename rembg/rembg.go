package rembg

import (
	"context"
	"image"
)

// Remover 背景分割能力：输入任意图，输出带 alpha 的抠图
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Passthrough returns the input unchanged. Stands in for a real backend in
// tests and when no segmentation endpoint is configured.
type Passthrough struct{}

func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return img, nil
}
