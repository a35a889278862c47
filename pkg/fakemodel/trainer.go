package fakemodel

import (
	"context"
	"slices"
	"sync"

	"github.com/rushteam/activeseg/core"
)

// Trainer 记录每一轮训练请求，按 LossFn 返回损失（nil 时损失为 1/(iteration+1)）。
type Trainer struct {
	LossFn func(round *core.TrainRound) (float64, error)

	mu     sync.Mutex
	rounds []core.TrainRound
}

func (t *Trainer) Train(ctx context.Context, round *core.TrainRound) (*core.TrainResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	cp := *round
	cp.Entries = slices.Clone(round.Entries)
	t.rounds = append(t.rounds, cp)
	t.mu.Unlock()

	loss := 1 / float64(round.Iteration+1)
	if t.LossFn != nil {
		var err error
		if loss, err = t.LossFn(round); err != nil {
			return nil, err
		}
	}
	return &core.TrainResult{Loss: loss, Epochs: 1}, nil
}

// Rounds 返回收到的全部训练请求。
func (t *Trainer) Rounds() []core.TrainRound {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rounds)
}

var _ core.Trainer = (*Trainer)(nil)
