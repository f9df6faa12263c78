package pipeline

import (
	"bytes"
	"image"
	"image/png"
)

// PNG 无损编码；有 alpha 保留 alpha
const contentTypePNG = "image/png"

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, wrapError(KindEncodingFailed, "failed to encode result image", err)
	}
	return buf.Bytes(), nil
}
