package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Limits 校验和缩放用到的全部阈值，由上层配置注入
type Limits struct {
	MaxUploadBytes  int64
	MinDimension    int
	MaxDimension    int
	ProcessingBound int
	AllowedFormats  []string
}

// Upload is the raw payload handed to the pipeline before any decoding.
type Upload struct {
	Filename string
	Size     int64
	Data     []byte
}

// validate 按顺序检查：扩展名 → 字节数 → 可解码 → 尺寸，第一个失败即返回。
// 边界都是闭区间：等于上限/下限算通过。
func validate(up Upload, limits Limits) (image.Image, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Filename), "."))
	if !formatAllowed(ext, limits.AllowedFormats) {
		return nil, newError(KindUnsupportedFormat,
			fmt.Sprintf("unsupported file type %q, supported formats: %s", ext, strings.Join(limits.AllowedFormats, ", ")))
	}

	size := up.Size
	if size == 0 {
		size = int64(len(up.Data))
	}
	if size > limits.MaxUploadBytes {
		return nil, newError(KindPayloadTooLarge,
			fmt.Sprintf("file too large, maximum size: %d MB", limits.MaxUploadBytes/(1024*1024)))
	}

	img, _, err := image.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, wrapError(KindCorruptImage, "invalid image file", err)
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w < limits.MinDimension || h < limits.MinDimension {
		return nil, newError(KindDimensionOutOfRange,
			fmt.Sprintf("image too small, minimum dimensions: %dx%dpx", limits.MinDimension, limits.MinDimension))
	}
	if w > limits.MaxDimension || h > limits.MaxDimension {
		return nil, newError(KindDimensionOutOfRange,
			fmt.Sprintf("image too large, maximum dimensions: %dx%dpx", limits.MaxDimension, limits.MaxDimension))
	}

	return img, nil
}

func formatAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}
