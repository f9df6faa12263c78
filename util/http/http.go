package http

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	// Response 接收响应：*[]byte / *bytes.Buffer 拿原始字节，其他非空指针按 JSON 解析
	Response interface{}

	Timeout time.Duration
}
