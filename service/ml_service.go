// Package service 提供外部模型服务的 HTTP 客户端：训练服务（RPCTrainer）与共用的 JSON 传输层。
package service

import "time"

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeHTTP       ServiceType = "http"        // 自定义 JSON 服务
	ServiceTypeTorchServe ServiceType = "torch_serve" // TorchServe 自定义 handler，路径带模型名
)

// ServiceConfig 服务配置
type ServiceConfig struct {
	// Type 服务类型，默认 http
	Type ServiceType `yaml:"type" json:"type"`

	// Endpoint 服务端点，例如 "http://localhost:8080"
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// ModelName 模型名称（torch_serve 必填）
	ModelName string `yaml:"model_name" json:"model_name"`

	// Timeout 超时时间（秒）
	Timeout int `yaml:"timeout" json:"timeout"`

	// Auth 认证信息（可选）
	Auth *AuthConfig `yaml:"auth" json:"auth"`
}

// TimeoutDuration 返回超时时间，未配置时为 def。
func (c *ServiceConfig) TimeoutDuration(def time.Duration) time.Duration {
	if c == nil || c.Timeout <= 0 {
		return def
	}
	return time.Duration(c.Timeout) * time.Second
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string `yaml:"type" json:"type"` // "basic", "bearer", "api_key"
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Token    string `yaml:"token" json:"token"`
	APIKey   string `yaml:"api_key" json:"api_key"`
}
