package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/activeseg/core"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *ServiceConfig
		wantErr bool
	}{
		{name: "nil", config: nil, wantErr: true},
		{name: "no endpoint", config: &ServiceConfig{}, wantErr: true},
		{name: "http", config: &ServiceConfig{Endpoint: "http://localhost:8080"}},
		{name: "torchserve without model", config: &ServiceConfig{Type: ServiceTypeTorchServe, Endpoint: "http://x"}, wantErr: true},
		{name: "torchserve", config: &ServiceConfig{Type: ServiceTypeTorchServe, Endpoint: "http://x", ModelName: "deeplab"}},
		{name: "unknown type", config: &ServiceConfig{Type: "grpc", Endpoint: "x"}, wantErr: true},
		{name: "bad auth", config: &ServiceConfig{Endpoint: "http://x", Auth: &AuthConfig{Type: "oauth"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimeoutDuration(t *testing.T) {
	var nilCfg *ServiceConfig
	assert.Equal(t, 3*time.Second, nilCfg.TimeoutDuration(3*time.Second))
	assert.Equal(t, 10*time.Second, (&ServiceConfig{Timeout: 10}).TimeoutDuration(time.Second))
}

func TestClientAuthHeaders(t *testing.T) {
	tests := []struct {
		auth  *AuthConfig
		check func(t *testing.T, r *http.Request)
	}{
		{
			auth: &AuthConfig{Type: "bearer", Token: "tok"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			},
		},
		{
			auth: &AuthConfig{Type: "api_key", APIKey: "k"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "k", r.Header.Get("X-API-Key"))
			},
		},
		{
			auth: &AuthConfig{Type: "basic", Username: "u", Password: "p"},
			check: func(t *testing.T, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "u", user)
				assert.Equal(t, "p", pass)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.auth.Type, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.check(t, r)
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			c := NewClient(srv.URL, WithAuth(tt.auth))
			require.NoError(t, c.Health(context.Background()))
		})
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	err := c.PostJSON(context.Background(), "/train", map[string]int{"a": 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
	assert.Contains(t, err.Error(), "boom")

	assert.True(t, core.IsUnavailable(c.Health(context.Background())))

	down := NewClient("http://127.0.0.1:1", WithTimeout(time.Second))
	err = down.PostJSON(context.Background(), "/train", struct{}{}, nil)
	assert.True(t, core.IsUnavailable(err))
}

func TestRPCTrainer(t *testing.T) {
	var got trainRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/train", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"loss": 0.25, "epochs": 3, "metrics": {"miou": 0.5}}`))
	}))
	defer srv.Close()

	trainer, err := NewTrainerFromConfig(&ServiceConfig{Endpoint: srv.URL, Timeout: 5})
	require.NoError(t, err)

	weak := core.NewLabelMap(1, 3)
	weak.Class = []int32{1, core.IgnoreIndex, -4}
	res, err := trainer.Train(context.Background(), &core.TrainRound{
		RunID:      "run-1",
		Iteration:  2,
		ResetModel: true,
		Mode:       "reset_model",
		Entries: []core.TrainEntry{
			{Key: "a", Regions: []core.Region{{X: 0, Y: 0, W: 2, H: 2}}},
			{Key: "b", Weak: true, Label: weak},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.25, res.Loss)
	assert.Equal(t, 3, res.Epochs)
	assert.Equal(t, 0.5, res.Metrics["miou"])

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Iteration)
	assert.True(t, got.Reset)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, "a", got.Entries[0].Key)
	assert.False(t, got.Entries[0].Weak)
	assert.Nil(t, got.Entries[0].Label)
	assert.Equal(t, []core.Region{{X: 0, Y: 0, W: 2, H: 2}}, got.Entries[0].Regions)

	require.NotNil(t, got.Entries[1].Label)
	raw, err := base64.StdEncoding.DecodeString(got.Entries[1].Label.Classes)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 255, 255}, raw)
}

func TestRPCTrainerRejectsBadInput(t *testing.T) {
	trainer := NewRPCTrainer(NewClient("http://127.0.0.1:1"))

	_, err := trainer.Train(context.Background(), nil)
	assert.True(t, core.IsInvalidInput(err))

	_, err = trainer.Train(context.Background(), &core.TrainRound{
		Entries: []core.TrainEntry{{Key: "x", Weak: true}},
	})
	assert.True(t, core.IsInvalidInput(err))
}

func TestRPCTrainerMissingLoss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"epochs": 1}`))
	}))
	defer srv.Close()

	_, err := NewRPCTrainer(NewClient(srv.URL)).Train(context.Background(), &core.TrainRound{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loss")
}
