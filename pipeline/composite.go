package pipeline

import (
	"fmt"
	"image"
	"image/color"
)

// ParseHexColor 只接受 #RRGGBB（大小写不限）。#RGB 和 #RRGGBBAA 都拒绝，
// 不做宽松兜底：格式不对就报 invalid_color，绝不静默当成"无背景色"。
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, newError(KindInvalidColor,
			fmt.Sprintf("background color must be in hex format (#RRGGBB), got %q", s))
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexVal(s[1+i*2])
		lo, ok2 := hexVal(s[2+i*2])
		if !ok1 || !ok2 {
			return color.NRGBA{}, newError(KindInvalidColor,
				fmt.Sprintf("invalid hex color %q", s))
		}
		rgb[i] = hi<<4 | lo
	}

	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}

func hexVal(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// compositeOver source-over 合成：out = fg*a + bg*(1-a)，逐像素整数运算。
// 结果永远完全不透明；前景 a=255 的像素原样保留，a=0 的像素就是背景色。
func compositeOver(fg *image.NRGBA, bg color.NRGBA) *image.NRGBA {
	b := fg.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if !hasUsefulAlpha(fg) {
		// 全不透明，背景色不可能露出来，直接拷贝像素
		copy(out.Pix, fg.Pix)
		return out
	}

	for i := 0; i < len(fg.Pix); i += 4 {
		a := uint32(fg.Pix[i+3])
		out.Pix[i] = blend(fg.Pix[i], bg.R, a)
		out.Pix[i+1] = blend(fg.Pix[i+1], bg.G, a)
		out.Pix[i+2] = blend(fg.Pix[i+2], bg.B, a)
		out.Pix[i+3] = 255
	}
	return out
}

// blend 混合单通道，+127 做四舍五入
func blend(fg, bg uint8, a uint32) uint8 {
	return uint8((uint32(fg)*a + uint32(bg)*(255-a) + 127) / 255)
}

// hasUsefulAlpha 检查 alpha 通道是否真的包含透明信息
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}
