package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/rushteam/activeseg/core"
)

// RPCTrainer 通过 HTTP 把一轮训练委托给外部训练服务。
//
// 请求格式（JSON）：
//
//	{"run_id": "...", "iteration": 2, "reset": false, "mode": "query_only",
//	 "entries": [{"key": "aachen/0001", "regions": [{"x":0,"y":0,"w":128,"h":128}]},
//	             {"key": "bochum/0042", "weak": true, "label": {"height": 2, "width": 2, "classes": "<base64>"}}]}
//
// 响应格式（JSON）：
//
//	{"loss": 0.41, "epochs": 50, "metrics": {"miou": 0.37}}
//
// 真值标注由训练服务按 key 自行读取；伪标注随请求下发。
type RPCTrainer struct {
	client *Client
	path   string
}

// NewRPCTrainer 创建远程训练客户端，路径为 /train。
func NewRPCTrainer(client *Client) *RPCTrainer {
	return &RPCTrainer{client: client, path: "/train"}
}

type trainRequest struct {
	RunID     string       `json:"run_id"`
	Iteration int          `json:"iteration"`
	Reset     bool         `json:"reset"`
	Mode      string       `json:"mode,omitempty"`
	Entries   []trainEntry `json:"entries"`
}

type trainEntry struct {
	Key     string        `json:"key"`
	Weak    bool          `json:"weak,omitempty"`
	Label   *wireLabel    `json:"label,omitempty"`
	Regions []core.Region `json:"regions,omitempty"`
}

// wireLabel 每像素一个字节，IgnoreIndex 与越界值都写成 255。
type wireLabel struct {
	Height  int    `json:"height"`
	Width   int    `json:"width"`
	Classes string `json:"classes"`
}

type trainResponse struct {
	Loss    *float64           `json:"loss"`
	Epochs  int                `json:"epochs"`
	Metrics map[string]float64 `json:"metrics"`
}

// Train 实现 core.Trainer。
func (t *RPCTrainer) Train(ctx context.Context, round *core.TrainRound) (*core.TrainResult, error) {
	if round == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "trainer: nil round")
	}

	req := trainRequest{
		RunID:     round.RunID,
		Iteration: round.Iteration,
		Reset:     round.ResetModel,
		Mode:      round.Mode,
		Entries:   make([]trainEntry, 0, len(round.Entries)),
	}
	for _, e := range round.Entries {
		te := trainEntry{Key: string(e.Key), Weak: e.Weak, Regions: e.Regions}
		if e.Weak {
			if e.Label == nil {
				return nil, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "trainer: weak entry %q has no label", e.Key)
			}
			te.Label = encodeLabel(e.Label)
		}
		req.Entries = append(req.Entries, te)
	}

	var resp trainResponse
	if err := t.client.PostJSON(ctx, t.path, &req, &resp); err != nil {
		return nil, fmt.Errorf("trainer: iteration %d: %w", round.Iteration, err)
	}
	if resp.Loss == nil {
		return nil, fmt.Errorf("trainer: iteration %d: response has no loss", round.Iteration)
	}
	return &core.TrainResult{Loss: *resp.Loss, Epochs: resp.Epochs, Metrics: resp.Metrics}, nil
}

func encodeLabel(lm *core.LabelMap) *wireLabel {
	buf := make([]byte, len(lm.Class))
	for i, c := range lm.Class {
		if c < 0 || c > math.MaxUint8 {
			c = core.IgnoreIndex
		}
		buf[i] = byte(c)
	}
	return &wireLabel{Height: lm.Height, Width: lm.Width, Classes: base64.StdEncoding.EncodeToString(buf)}
}

var _ core.Trainer = (*RPCTrainer)(nil)
