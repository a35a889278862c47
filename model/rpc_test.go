package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
	"github.com/rushteam/activeseg/service"
)

// newForwardServer 返回一个按请求构造 logits 的假推理服务：每个像素的 class 0 logit 为首字节。
func newForwardServer(t *testing.T, classes int, seen *forwardRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req forwardRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if seen != nil {
			*seen = req
		}

		var resp forwardResponse
		for _, wi := range req.Images {
			im, err := decodeImage(wi)
			if !assert.NoError(t, err) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			n := im.Height * im.Width
			data := make([]float32, classes*n)
			for i := 0; i < n; i++ {
				data[i] = float32(im.Pix[0])
			}
			resp.Logits = append(resp.Logits, wireTensor{Classes: classes, Height: im.Height, Width: im.Width, Data: data})
			if req.Features {
				resp.Features = append(resp.Features, wireTensor{Channels: 2, Height: 1, Width: 1, Data: []float32{float32(im.Pix[0]), 1}})
			}
		}
		_ = json.NewEncoder(w).Encode(&resp)
	}))
}

func testImage(id uint8, h, w int) *core.Image {
	im := core.NewImage(h, w)
	im.Pix[0] = id
	return im
}

func TestRPCModelForward(t *testing.T) {
	var seen forwardRequest
	srv := newForwardServer(t, 3, &seen)
	defer srv.Close()

	m := NewRPCModel("deeplab", 3, service.NewClient(srv.URL), "")
	assert.Equal(t, "deeplab", m.Name())
	assert.Equal(t, 3, m.NumClasses())

	logits, err := m.Forward(context.Background(), []*core.Image{testImage(7, 2, 2), testImage(9, 2, 2)}, core.ModeStochastic)
	require.NoError(t, err)
	require.Len(t, logits, 2)
	assert.Equal(t, float32(7), logits[0].At(0, 1, 1))
	assert.Equal(t, float32(9), logits[1].At(0, 0, 0))
	assert.Equal(t, "stochastic", seen.Mode)
	assert.False(t, seen.Features)
	assert.Nil(t, seen.FeatureNoise)
}

func TestRPCModelFeatures(t *testing.T) {
	srv := newForwardServer(t, 2, nil)
	defer srv.Close()

	m := NewRPCModel("deeplab", 2, service.NewClient(srv.URL), "/forward")
	logits, feats, err := m.ForwardFeatures(context.Background(), []*core.Image{testImage(4, 1, 2)}, core.ModeDeterministic)
	require.NoError(t, err)
	require.Len(t, logits, 1)
	require.Len(t, feats, 1)
	assert.Equal(t, []float64{4, 1}, feats[0].Pooled())
}

func TestRPCModelFeatureNoise(t *testing.T) {
	var seen forwardRequest
	srv := newForwardServer(t, 2, &seen)
	defer srv.Close()

	m := NewRPCModel("deeplab", 2, service.NewClient(srv.URL), "")
	_, err := m.ForwardFeatureNoise(context.Background(), []*core.Image{testImage(1, 1, 1)}, 0.3, 42)
	require.NoError(t, err)
	require.NotNil(t, seen.FeatureNoise)
	assert.Equal(t, 0.3, seen.FeatureNoise.Sigma)
	assert.Equal(t, int64(42), seen.FeatureNoise.Seed)
	assert.Equal(t, "deterministic", seen.Mode)
}

func TestRPCModelClassMismatch(t *testing.T) {
	srv := newForwardServer(t, 5, nil)
	defer srv.Close()

	m := NewRPCModel("deeplab", 3, service.NewClient(srv.URL), "")
	_, err := m.Forward(context.Background(), []*core.Image{testImage(1, 1, 1)}, core.ModeDeterministic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes")
}

func TestRPCModelEmptyBatch(t *testing.T) {
	m := NewRPCModel("deeplab", 3, service.NewClient("http://127.0.0.1:1"), "")
	logits, err := m.Forward(context.Background(), nil, core.ModeDeterministic)
	require.NoError(t, err)
	assert.Empty(t, logits)
}

func TestNewRPCModelFromConfig(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"logits":[{"classes":1,"height":1,"width":1,"data":[0.5]}]}`))
	}))
	defer srv.Close()

	m, err := NewRPCModelFromConfig(&service.ServiceConfig{
		Type:      service.ServiceTypeTorchServe,
		Endpoint:  srv.URL,
		ModelName: "deeplab",
	}, 1)
	require.NoError(t, err)
	_, err = m.Forward(context.Background(), []*core.Image{testImage(0, 1, 1)}, core.ModeDeterministic)
	require.NoError(t, err)
	assert.Equal(t, "/predictions/deeplab", path)

	_, err = NewRPCModelFromConfig(&service.ServiceConfig{Endpoint: srv.URL}, 0)
	assert.True(t, core.IsInvalidInput(err))
}
