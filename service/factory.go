package service

import (
	"context"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// NewClientFromConfig 根据配置创建客户端（工厂方法）。
func NewClientFromConfig(config *ServiceConfig) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	opts := []Option{
		WithTimeout(config.TimeoutDuration((&core.DefaultSelectionConfig{}).DefaultTimeout())),
	}
	if config.Auth != nil {
		opts = append(opts, WithAuth(config.Auth))
	}
	return NewClient(config.Endpoint, opts...), nil
}

// NewTrainerFromConfig 根据配置创建远程训练客户端。
func NewTrainerFromConfig(config *ServiceConfig) (*RPCTrainer, error) {
	client, err := NewClientFromConfig(config)
	if err != nil {
		return nil, err
	}
	return NewRPCTrainer(client), nil
}

// ValidateConfig 验证服务配置
func ValidateConfig(config *ServiceConfig) error {
	if config == nil {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: config is required")
	}
	if config.Endpoint == "" {
		return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: endpoint is required")
	}
	switch config.Type {
	case "", ServiceTypeHTTP:
	case ServiceTypeTorchServe:
		if config.ModelName == "" {
			return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: model name is required for torch_serve")
		}
	default:
		return core.Errorf(core.ModuleService, core.ErrorCodeNotSupported, "service: unsupported service type: %s", config.Type)
	}
	if config.Auth != nil {
		switch config.Auth.Type {
		case "basic", "bearer", "api_key":
		default:
			return core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "service: unsupported auth type: %q", config.Auth.Type)
		}
	}
	return nil
}

// TestConnection 测试服务连接
func TestConnection(ctx context.Context, c *Client) error {
	if c == nil {
		return fmt.Errorf("service is nil")
	}
	return c.Health(ctx)
}
