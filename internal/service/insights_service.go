package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/features"
	"github.com/medipredict/internal/metrics"
	"github.com/medipredict/internal/risk"
	"go.uber.org/zap"
)

// holdoutFraction 与原型中 test_size=0.25 保持一致
const holdoutFraction = 0.25

// HeatmapRow 为热力图中的一个格子：某天某小时某状态出现的次数
type HeatmapRow struct {
	Day      string        `json:"day"`
	DayIndex int           `json:"day_index"`
	Hour     int           `json:"hour"`
	Status   db.DoseStatus `json:"status"`
	Count    int           `json:"count"`
}

// AdherenceSummary 汇总服药依从率
type AdherenceSummary struct {
	Total  int     `json:"total"`
	Taken  int     `json:"taken"`
	Missed int     `json:"missed"`
	Rate   float64 `json:"rate"`
}

// HourlyMissRatio 为某个小时的漏服比例
type HourlyMissRatio struct {
	Hour   int     `json:"hour"`
	Total  int     `json:"total"`
	Missed int     `json:"missed"`
	Ratio  float64 `json:"ratio"`
}

// RiskModel 描述已训练的模型，Handle 用于后续 QueryRisk
type RiskModel struct {
	Handle     string           `json:"handle"`
	Rows       int              `json:"rows"`
	Taken      int              `json:"taken"`
	Missed     int              `json:"missed"`
	Slots      []string         `json:"slots"`
	Evaluation *risk.Evaluation `json:"evaluation,omitempty"`
}

// Insights 为洞察页的完整数据。Risk 为 nil 时 InsufficientData 为 true。
type Insights struct {
	Heatmap          []HeatmapRow      `json:"heatmap"`
	Adherence        AdherenceSummary  `json:"adherence"`
	HourlyMiss       []HourlyMissRatio `json:"hourly_miss"`
	Risk             *RiskModel        `json:"risk"`
	InsufficientData bool              `json:"insufficient_data"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// InsightsService 基于服药记录生成热力图并训练风险模型
type InsightsService struct {
	logs     *DoseLogService
	cache    *EstimatorCache
	location *time.Location
	opts     risk.Options
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewInsightsService 构造 InsightsService，loc 为 nil 时使用 time.Local
func NewInsightsService(logs *DoseLogService, cache *EstimatorCache, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *InsightsService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightsService{
		logs:     logs,
		cache:    cache,
		location: loc,
		opts:     risk.DefaultOptions(),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithOptions 替换训练参数
func (s *InsightsService) WithOptions(opts risk.Options) *InsightsService {
	s.opts = opts
	return s
}

// WithClock 替换时钟，便于测试
func (s *InsightsService) WithClock(now func() time.Time) *InsightsService {
	if now != nil {
		s.now = now
	}
	return s
}

// GetInsights 返回会话用户的热力图与风险模型。
// 数据不足以训练时仍返回热力图，Risk 为 nil 且 InsufficientData 为 true。
func (s *InsightsService) GetInsights(sess Session) (*Insights, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	events, err := s.logs.ListWithSlots(sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.build(sess.UserID, events)
}

// GetPopulationInsights 基于全部用户的记录生成洞察，对应原型中的整体模型
func (s *InsightsService) GetPopulationInsights(sess Session) (*Insights, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	events, err := s.logs.ListAllWithSlots()
	if err != nil {
		return nil, err
	}
	return s.build(populationOwner, events)
}

// QueryRisk 使用句柄对应的模型预测漏服概率。未见过的 slot 不报错。
func (s *InsightsService) QueryRisk(sess Session, handle string, hour, dayOfWeek int, slot string) (float64, error) {
	if err := sess.require(); err != nil {
		return 0, err
	}

	entry, err := s.cache.resolve(handle, sess.UserID)
	if err != nil {
		return 0, err
	}
	return entry.estimator.Predict(hour, dayOfWeek, slot)
}

func (s *InsightsService) build(owner uint, events []features.Event) (*Insights, error) {
	localized := make([]features.Event, len(events))
	for i, event := range events {
		event.OccurredAt = event.OccurredAt.In(s.location)
		localized[i] = event
	}

	insights := &Insights{
		Heatmap:     []HeatmapRow{},
		HourlyMiss:  []HourlyMissRatio{},
		GeneratedAt: s.now(),
	}

	table, err := features.Build(localized)
	if err != nil {
		if errors.Is(err, features.ErrInsufficientData) {
			insights.InsufficientData = true
			return insights, nil
		}
		return nil, fmt.Errorf("build features: %w", err)
	}

	insights.Heatmap = heatmapRows(table)
	insights.Adherence = adherence(table)
	insights.HourlyMiss = hourlyMissRatios(table)

	model, err := s.riskModel(cacheKey{owner: owner, logLength: table.Len()}, table)
	if err != nil {
		if errors.Is(err, risk.ErrInsufficientData) {
			insights.InsufficientData = true
			return insights, nil
		}
		return nil, err
	}
	insights.Risk = model
	return insights, nil
}

func (s *InsightsService) riskModel(key cacheKey, table features.Table) (*RiskModel, error) {
	entry, ok := s.cache.lookup(key)
	if !ok {
		started := time.Now()
		estimator := risk.New(s.opts)
		if err := estimator.Fit(table); err != nil {
			if errors.Is(err, risk.ErrInsufficientData) {
				s.metrics.RecordFit("insufficient_data", time.Since(started))
				return nil, err
			}
			s.metrics.RecordFit("error", time.Since(started))
			return nil, fmt.Errorf("fit estimator: %w", err)
		}
		s.metrics.RecordFit("ok", time.Since(started))

		var evaluation *risk.Evaluation
		result, err := risk.Evaluate(table, holdoutFraction, risk.DefaultSeed, s.opts)
		switch {
		case err == nil:
			evaluation = &result
		case errors.Is(err, risk.ErrInsufficientData):
			s.logger.Debug("holdout skipped", zap.Uint("owner", key.owner), zap.Int("rows", table.Len()), zap.Error(err))
		default:
			return nil, fmt.Errorf("evaluate estimator: %w", err)
		}

		entry = s.cache.store(key, estimator, evaluation)
		s.logger.Info("estimator fitted",
			zap.Uint("owner", key.owner),
			zap.Int("rows", table.Len()),
			zap.String("handle", entry.handle),
		)
	}

	summary, err := entry.estimator.Summary()
	if err != nil {
		return nil, err
	}
	return &RiskModel{
		Handle:     entry.handle,
		Rows:       summary.Rows,
		Taken:      summary.Taken,
		Missed:     summary.Missed,
		Slots:      summary.Slots,
		Evaluation: entry.evaluation,
	}, nil
}

type heatmapKey struct {
	day    int
	hour   int
	status db.DoseStatus
}

// heatmapRows 按 (day, hour, status) 聚合，结果按天、小时、状态排序
func heatmapRows(table features.Table) []HeatmapRow {
	counts := make(map[heatmapKey]int)
	for _, row := range table.Rows {
		counts[heatmapKey{day: row.DayOfWeek, hour: row.Hour, status: statusFor(row.Label)}]++
	}

	rows := make([]HeatmapRow, 0, len(counts))
	for key, count := range counts {
		rows = append(rows, HeatmapRow{
			Day:      features.DayName(key.day),
			DayIndex: key.day,
			Hour:     key.hour,
			Status:   key.status,
			Count:    count,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DayIndex != rows[j].DayIndex {
			return rows[i].DayIndex < rows[j].DayIndex
		}
		if rows[i].Hour != rows[j].Hour {
			return rows[i].Hour < rows[j].Hour
		}
		return rows[i].Status > rows[j].Status
	})
	return rows
}

func adherence(table features.Table) AdherenceSummary {
	taken, missed := table.ClassCounts()
	summary := AdherenceSummary{Total: taken + missed, Taken: taken, Missed: missed}
	if summary.Total > 0 {
		summary.Rate = float64(taken) / float64(summary.Total)
	}
	return summary
}

func hourlyMissRatios(table features.Table) []HourlyMissRatio {
	var totals, missed [24]int
	for _, row := range table.Rows {
		totals[row.Hour]++
		if row.Label == features.LabelMissed {
			missed[row.Hour]++
		}
	}

	ratios := make([]HourlyMissRatio, 0)
	for hour := range totals {
		if totals[hour] == 0 {
			continue
		}
		ratios = append(ratios, HourlyMissRatio{
			Hour:   hour,
			Total:  totals[hour],
			Missed: missed[hour],
			Ratio:  float64(missed[hour]) / float64(totals[hour]),
		})
	}
	return ratios
}

func statusFor(label int) db.DoseStatus {
	if label == features.LabelTaken {
		return db.DoseTaken
	}
	return db.DoseMissed
}
