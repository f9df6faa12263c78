package rembg

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Limit 用信号量限制并发分割数。后端模型的并发安全性没有保证，
// 上限设为 1 时等价于串行化访问。排队超过 queueTimeout 直接失败，不重试。
type Limit struct {
	inner        Remover
	sem          chan struct{}
	queueTimeout time.Duration
}

func NewLimit(inner Remover, maxConcurrent int, queueTimeout time.Duration) *Limit {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limit{
		inner:        inner,
		sem:          make(chan struct{}, maxConcurrent),
		queueTimeout: queueTimeout,
	}
}

func (l *Limit) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	waitCtx := ctx
	if l.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.queueTimeout)
		defer cancel()
	}

	select {
	case l.sem <- struct{}{}:
		defer func() { <-l.sem }()
	case <-waitCtx.Done():
		return nil, fmt.Errorf("segmentation queue is full: %w", waitCtx.Err())
	}

	return l.inner.Remove(ctx, img)
}
