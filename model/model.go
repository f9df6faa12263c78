package model

// ErrorResponse 错误响应：只有稳定的 code 和简短 message，不带内部细节
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// APIInfoResponse 服务说明
type APIInfoResponse struct {
	Service          string                  `json:"service"`
	Version          string                  `json:"version"`
	Endpoints        map[string]EndpointInfo `json:"endpoints"`
	SupportedFormats []string                `json:"supported_formats"`
}

type EndpointInfo struct {
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}
