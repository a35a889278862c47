// Package model 提供分割模型的远程实现：通过 HTTP 调用外部推理服务。
package model

import (
	"context"
	"fmt"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/service"
)

// RPCModel 是通过 HTTP 调用外部推理服务的 core.Model 实现。
// 同时实现 FeatureModel 与 FeatureNoiseModel；服务端不支持时由服务返回错误。
type RPCModel struct {
	name    string
	classes int
	path    string
	client  *service.Client
}

// NewRPCModel 创建远程模型。path 为空时使用 "/forward"。
func NewRPCModel(name string, classes int, client *service.Client, path string) *RPCModel {
	if path == "" {
		path = "/forward"
	}
	return &RPCModel{name: name, classes: classes, path: path, client: client}
}

// NewRPCModelFromConfig 根据服务配置创建远程模型。
// torch_serve 类型使用 TorchServe 自定义 handler 路径 /predictions/{model_name}。
func NewRPCModelFromConfig(cfg *service.ServiceConfig, classes int) (*RPCModel, error) {
	client, err := service.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if classes <= 0 {
		return nil, core.Errorf(core.ModuleInference, core.ErrorCodeInvalidInput, "model: classes must be positive, got %d", classes)
	}
	path := "/forward"
	name := cfg.ModelName
	if cfg.Type == service.ServiceTypeTorchServe {
		path = "/predictions/" + cfg.ModelName
	}
	if name == "" {
		name = "rpc"
	}
	return NewRPCModel(name, classes, client, path), nil
}

func (m *RPCModel) Name() string { return m.name }

func (m *RPCModel) NumClasses() int { return m.classes }

// Forward 实现 core.Model。
func (m *RPCModel) Forward(ctx context.Context, images []*core.Image, mode core.InferenceMode) ([]*core.Logits, error) {
	logits, _, err := m.call(ctx, &forwardRequest{Images: encodeImages(images), Mode: mode.String()}, images)
	return logits, err
}

// ForwardFeatures 实现 core.FeatureModel。
func (m *RPCModel) ForwardFeatures(ctx context.Context, images []*core.Image, mode core.InferenceMode) ([]*core.Logits, []*core.FeatureMap, error) {
	logits, feats, err := m.call(ctx, &forwardRequest{Images: encodeImages(images), Mode: mode.String(), Features: true}, images)
	if err != nil {
		return nil, nil, err
	}
	if len(feats) != len(images) {
		return nil, nil, fmt.Errorf("model %s: expected %d feature maps, got %d", m.name, len(images), len(feats))
	}
	return logits, feats, nil
}

// ForwardFeatureNoise 实现 core.FeatureNoiseModel。
func (m *RPCModel) ForwardFeatureNoise(ctx context.Context, images []*core.Image, sigma float64, seed int64) ([]*core.Logits, error) {
	req := &forwardRequest{
		Images:       encodeImages(images),
		Mode:         core.ModeDeterministic.String(),
		FeatureNoise: &featureNoise{Sigma: sigma, Seed: seed},
	}
	logits, _, err := m.call(ctx, req, images)
	return logits, err
}

func (m *RPCModel) call(ctx context.Context, req *forwardRequest, images []*core.Image) ([]*core.Logits, []*core.FeatureMap, error) {
	if len(images) == 0 {
		return []*core.Logits{}, nil, nil
	}

	var resp forwardResponse
	if err := m.client.PostJSON(ctx, m.path, req, &resp); err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", m.name, err)
	}
	if len(resp.Logits) != len(images) {
		return nil, nil, fmt.Errorf("model %s: response logits count mismatch: expected %d, got %d", m.name, len(images), len(resp.Logits))
	}

	logits := make([]*core.Logits, len(images))
	for i, t := range resp.Logits {
		l, err := t.toLogits(m.classes, images[i])
		if err != nil {
			return nil, nil, fmt.Errorf("model %s: image %d: %w", m.name, i, err)
		}
		logits[i] = l
	}

	var feats []*core.FeatureMap
	if len(resp.Features) > 0 {
		feats = make([]*core.FeatureMap, len(resp.Features))
		for i, t := range resp.Features {
			f, err := t.toFeatureMap()
			if err != nil {
				return nil, nil, fmt.Errorf("model %s: features %d: %w", m.name, i, err)
			}
			feats[i] = f
		}
	}
	return logits, feats, nil
}

var (
	_ core.Model             = (*RPCModel)(nil)
	_ core.FeatureModel      = (*RPCModel)(nil)
	_ core.FeatureNoiseModel = (*RPCModel)(nil)
)
