// Package monitor 定义主动学习链路的 Prometheus 指标。
// 指标通过 promauto 注册到默认 registry，由 cmd/activeseg 的 /metrics 端点暴露。
package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// inferenceBatches 统计推理 batch 数，按推理模式区分
	inferenceBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activeseg_inference_batches_total",
		Help: "Total inference batches by mode",
	}, []string{"mode"})

	// inferenceImages 统计推理过的图像数
	inferenceImages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activeseg_inference_images_total",
		Help: "Total images passed through the model by mode",
	}, []string{"mode"})

	// selectionDuration 记录一次选择的耗时
	selectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "activeseg_selection_duration_seconds",
		Help:    "Selection duration in seconds by method",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
	}, []string{"method"})

	// selectionErrors 按方法与错误码统计选择失败
	selectionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activeseg_selection_errors_total",
		Help: "Total selection failures by method and error code",
	}, []string{"method", "code"})

	// selectedKeys 统计被选中交给 oracle 的图像数
	selectedKeys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activeseg_selected_keys_total",
		Help: "Total keys selected for labeling by method",
	}, []string{"method"})

	poolLabeled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "activeseg_pool_labeled",
		Help: "Number of labeled keys in the pool",
	})

	poolRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "activeseg_pool_remaining",
		Help: "Number of unlabeled keys in the pool",
	})

	poolWeak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "activeseg_pool_weakly_labeled",
		Help: "Number of weakly labeled keys installed for the next training",
	})

	loopIteration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "activeseg_loop_iteration",
		Help: "Current active learning iteration",
	})

	trainingLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "activeseg_training_loss",
		Help: "Final loss reported by the last training round",
	})
)

// ObserveInferenceBatch 记录一个推理 batch。
func ObserveInferenceBatch(mode string, images int) {
	inferenceBatches.WithLabelValues(mode).Inc()
	inferenceImages.WithLabelValues(mode).Add(float64(images))
}

// ObserveSelection 记录一次成功的选择。
func ObserveSelection(method string, selected int, elapsed time.Duration) {
	selectionDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	selectedKeys.WithLabelValues(method).Add(float64(selected))
}

// ObserveSelectionError 记录一次失败的选择。
func ObserveSelectionError(method, code string) {
	if code == "" {
		code = "unknown"
	}
	selectionErrors.WithLabelValues(method, code).Inc()
}

// SetPool 更新样本池规模。
func SetPool(labeled, remaining, weak int) {
	poolLabeled.Set(float64(labeled))
	poolRemaining.Set(float64(remaining))
	poolWeak.Set(float64(weak))
}

// SetRound 更新当前轮次与训练 loss。
func SetRound(iteration int, loss float64) {
	loopIteration.Set(float64(iteration))
	trainingLoss.Set(loss)
}
