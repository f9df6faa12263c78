package pipeline

import (
	"context"
	"image"
	"image/color"
)

// Remover 背景分割能力，由外部模型提供
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Result holds the encoded output of a successful run.
type Result struct {
	Data        []byte
	ContentType string
}

// Pipeline sequences validate → decode → resize → remove → composite → encode.
// The remover handle is shared read-only across invocations; everything else
// is allocated per call and released when Process returns.
type Pipeline struct {
	limits  Limits
	remover Remover
}

func New(limits Limits, remover Remover) *Pipeline {
	return &Pipeline{
		limits:  limits,
		remover: remover,
	}
}

// Process runs one upload through the full pipeline. colorSpec is the raw
// form value; empty means keep transparency. The first failing stage
// short-circuits the rest, no retries, no partial output.
func (p *Pipeline) Process(ctx context.Context, up Upload, colorSpec string) (*Result, error) {
	// 背景色先解析，格式错误不必走昂贵的分割阶段
	var bg *color.NRGBA
	if colorSpec != "" {
		c, err := ParseHexColor(colorSpec)
		if err != nil {
			return nil, err
		}
		bg = &c
	}

	decoded, err := validate(up, p.limits)
	if err != nil {
		return nil, err
	}

	src := resizeWithinMax(toNRGBA(decoded), p.limits.ProcessingBound)

	removed, err := p.remover.Remove(ctx, src)
	if err != nil {
		return nil, wrapError(KindSegmentationFailed, "background removal failed", err)
	}
	// 统一转 NRGBA，保证后续阶段总能看到 alpha 通道
	cut := toNRGBA(removed)

	out := cut
	if bg != nil {
		out = compositeOver(cut, *bg)
	}

	data, err := encodePNG(out)
	if err != nil {
		return nil, err
	}

	return &Result{Data: data, ContentType: contentTypePNG}, nil
}
