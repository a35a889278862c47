package model

import (
	"encoding/base64"
	"fmt"

	"github.com/rushteam/activeseg/core"
)

// 前向推理服务的请求/响应格式（JSON）。
//
// 请求：
//
//	{"images": [{"height": 2, "width": 2, "pixels": "<base64 HWC RGB>"}],
//	 "mode": "stochastic", "features": true,
//	 "feature_noise": {"sigma": 0.1, "seed": 7}}
//
// 响应：
//
//	{"logits": [{"classes": 19, "height": 2, "width": 2, "data": [...]}],
//	 "features": [{"channels": 64, "height": 2, "width": 2, "data": [...]}]}
type forwardRequest struct {
	Images       []wireImage   `json:"images"`
	Mode         string        `json:"mode"`
	Features     bool          `json:"features,omitempty"`
	FeatureNoise *featureNoise `json:"feature_noise,omitempty"`
}

type featureNoise struct {
	Sigma float64 `json:"sigma"`
	Seed  int64   `json:"seed"`
}

type wireImage struct {
	Height int    `json:"height"`
	Width  int    `json:"width"`
	Pixels string `json:"pixels"`
}

type forwardResponse struct {
	Logits   []wireTensor `json:"logits"`
	Features []wireTensor `json:"features,omitempty"`
}

// wireTensor 是 CHW 排布的浮点张量；logits 用 classes，特征图用 channels。
type wireTensor struct {
	Classes  int       `json:"classes,omitempty"`
	Channels int       `json:"channels,omitempty"`
	Height   int       `json:"height"`
	Width    int       `json:"width"`
	Data     []float32 `json:"data"`
}

func encodeImages(images []*core.Image) []wireImage {
	out := make([]wireImage, len(images))
	for i, im := range images {
		out[i] = wireImage{
			Height: im.Height,
			Width:  im.Width,
			Pixels: base64.StdEncoding.EncodeToString(im.Pix),
		}
	}
	return out
}

// decodeImage 是 encodeImages 的逆过程，供服务端与测试使用。
func decodeImage(w wireImage) (*core.Image, error) {
	pix, err := base64.StdEncoding.DecodeString(w.Pixels)
	if err != nil {
		return nil, fmt.Errorf("decode pixels: %w", err)
	}
	if len(pix) != w.Height*w.Width*3 {
		return nil, fmt.Errorf("image has %d bytes, want %d", len(pix), w.Height*w.Width*3)
	}
	return &core.Image{Height: w.Height, Width: w.Width, Pix: pix}, nil
}

// toLogits 校验张量尺寸与类别数并转换为 core.Logits。
func (t wireTensor) toLogits(classes int, im *core.Image) (*core.Logits, error) {
	if t.Classes != classes {
		return nil, fmt.Errorf("logits have %d classes, want %d", t.Classes, classes)
	}
	if t.Height != im.Height || t.Width != im.Width {
		return nil, fmt.Errorf("logits are %dx%d, image is %dx%d", t.Height, t.Width, im.Height, im.Width)
	}
	if len(t.Data) != t.Classes*t.Height*t.Width {
		return nil, fmt.Errorf("logits carry %d values, want %d", len(t.Data), t.Classes*t.Height*t.Width)
	}
	return &core.Logits{Classes: t.Classes, Height: t.Height, Width: t.Width, Data: t.Data}, nil
}

func (t wireTensor) toFeatureMap() (*core.FeatureMap, error) {
	if len(t.Data) != t.Channels*t.Height*t.Width {
		return nil, fmt.Errorf("features carry %d values, want %d", len(t.Data), t.Channels*t.Height*t.Width)
	}
	return &core.FeatureMap{Channels: t.Channels, Height: t.Height, Width: t.Width, Data: t.Data}, nil
}
