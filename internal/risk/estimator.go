// Package risk 提供漏服风险估计：基于 one-hot 编码的 L2 正则逻辑回归。
package risk

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/medipredict/internal/features"
)

var (
	// ErrNotFitted 在未成功训练前调用 Predict 时返回
	ErrNotFitted = errors.New("estimator not fitted")
	// ErrInvalidQuery 表示查询参数越界（hour 必须位于 0-23）
	ErrInvalidQuery = errors.New("invalid risk query")
	// ErrInsufficientData 与 features 包共用同一个哨兵错误
	ErrInsufficientData = features.ErrInsufficientData
)

// Options 控制训练过程，C 与 scikit-learn 的含义一致（正则强度的倒数）
type Options struct {
	C             float64
	LearningRate  float64
	MaxIterations int
	Tolerance     float64
}

// DefaultOptions 返回默认训练参数
func DefaultOptions() Options {
	return Options{
		C:             1.0,
		LearningRate:  0.5,
		MaxIterations: 5000,
		Tolerance:     1e-7,
	}
}

func (o Options) normalized() Options {
	defaults := DefaultOptions()
	if o.C <= 0 {
		o.C = defaults.C
	}
	if o.LearningRate <= 0 {
		o.LearningRate = defaults.LearningRate
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaults.MaxIterations
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaults.Tolerance
	}
	return o
}

type model struct {
	enc        *encoder
	weights    []float64
	intercept  float64
	rows       int
	taken      int
	missed     int
	iterations int
}

// Summary 描述已训练模型的基本信息
type Summary struct {
	Rows       int
	Taken      int
	Missed     int
	Slots      []string
	Iterations int
}

// Estimator 只有两个状态：Unfit（初始）与 Fit（成功训练后）。
// 再次 Fit 成功会原子替换模型，失败时保留原模型。
type Estimator struct {
	mu    sync.RWMutex
	opts  Options
	model *model
}

// New 构造一个未训练的 Estimator
func New(opts Options) *Estimator {
	return &Estimator{opts: opts.normalized()}
}

// Fit 在特征表上训练模型，零行或单一类别返回 ErrInsufficientData
func (e *Estimator) Fit(table features.Table) error {
	if table.Len() == 0 {
		return fmt.Errorf("%w: no rows", ErrInsufficientData)
	}
	taken, missed := table.ClassCounts()
	if taken == 0 || missed == 0 {
		return fmt.Errorf("%w: need both taken and missed doses (taken=%d missed=%d)", ErrInsufficientData, taken, missed)
	}

	fitted := train(table, e.opts)
	fitted.taken = taken
	fitted.missed = missed

	e.mu.Lock()
	e.model = fitted
	e.mu.Unlock()
	return nil
}

// Fitted 判断是否处于 Fit 状态
func (e *Estimator) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Predict 返回给定时刻漏服的概率，结果位于 [0,1]。
// 未训练时无论参数如何都返回 ErrNotFitted；训练时未出现的 slot 不会报错，对应特征按全 0 处理。
func (e *Estimator) Predict(hour, dayOfWeek int, slot string) (float64, error) {
	e.mu.RLock()
	m := e.model
	e.mu.RUnlock()
	if m == nil {
		return 0, ErrNotFitted
	}

	if hour < 0 || hour > maxHour {
		return 0, fmt.Errorf("%w: hour %d out of range", ErrInvalidQuery, hour)
	}

	x := make([]float64, m.enc.width())
	m.enc.encode(hour, dayOfWeek, slot, x)
	pTaken := sigmoid(dot(m.weights, x) + m.intercept)

	return clamp01(1 - pTaken), nil
}

// KnownSlot 判断 slot 是否在训练数据中出现过
func (e *Estimator) KnownSlot(slot string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return false
	}
	return e.model.enc.known(slot)
}

// Summary 返回当前模型信息，未训练时返回 ErrNotFitted
func (e *Estimator) Summary() (Summary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return Summary{}, ErrNotFitted
	}
	return Summary{
		Rows:       e.model.rows,
		Taken:      e.model.taken,
		Missed:     e.model.missed,
		Slots:      slices.Clone(e.model.enc.slots),
		Iterations: e.model.iterations,
	}, nil
}

// train 使用批量梯度下降最小化
// (1/n)·Σ logloss + ||w||²/(2·C·n)，截距不参与正则。
// 特征取值都在 [0,1]，且每行最多 3 个非零项，学习率 0.5 可以稳定收敛。
func train(table features.Table, opts Options) *model {
	enc := newEncoder(table.Slots())
	n := table.Len()
	width := enc.width()

	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i, row := range table.Rows {
		xs[i] = make([]float64, width)
		enc.encode(row.Hour, row.DayOfWeek, row.Slot, xs[i])
		ys[i] = float64(row.Label)
	}

	weights := make([]float64, width)
	gradW := make([]float64, width)
	var intercept float64
	invN := 1 / float64(n)
	penalty := 1 / (opts.C * float64(n))

	iterations := 0
	for iterations < opts.MaxIterations {
		iterations++
		clear(gradW)
		var gradB float64

		for i, x := range xs {
			residual := sigmoid(dot(weights, x)+intercept) - ys[i]
			for j, v := range x {
				if v != 0 {
					gradW[j] += residual * v
				}
			}
			gradB += residual
		}

		maxGrad := math.Abs(gradB * invN)
		for j := range weights {
			gradW[j] = gradW[j]*invN + penalty*weights[j]
			maxGrad = math.Max(maxGrad, math.Abs(gradW[j]))
			weights[j] -= opts.LearningRate * gradW[j]
		}
		intercept -= opts.LearningRate * gradB * invN

		if maxGrad < opts.Tolerance {
			break
		}
	}

	return &model{
		enc:        enc,
		weights:    weights,
		intercept:  intercept,
		rows:       n,
		iterations: iterations,
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
