package handler

import (
	"time"

	"github.com/medipredict/internal/config"
	"github.com/medipredict/internal/metrics"
	"github.com/medipredict/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db             *gorm.DB
	users          *service.UserService
	medications    *service.MedicationService
	doses          *service.DoseLogService
	insights       *service.InsightsService
	cache          *service.EstimatorCache
	metrics        *metrics.Metrics
	logger         *zap.Logger
	limiter        *loginLimiter
	location       *time.Location
	reminderWindow time.Duration
	now            func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, cfg config.AppConfig, m *metrics.Metrics, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("unknown timezone, falling back to local", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.Local
	}

	doses := service.NewDoseLogService(gdb, m)
	cache := service.NewEstimatorCache(cfg.EstimatorIdleTTL, m)

	return &API{
		db:             gdb,
		users:          service.NewUserService(gdb),
		medications:    service.NewMedicationService(gdb),
		doses:          doses,
		insights:       service.NewInsightsService(doses, cache, loc, m, logger),
		cache:          cache,
		metrics:        m,
		logger:         logger,
		limiter:        newLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
		location:       loc,
		reminderWindow: cfg.ReminderWindow,
		now:            time.Now,
	}
}

// EstimatorCache exposes the fitted-model cache so the caller can schedule eviction.
func (a *API) EstimatorCache() *service.EstimatorCache {
	return a.cache
}

// WithClock 替换时钟，供测试固定“当前时间”
func (a *API) WithClock(now func() time.Time) *API {
	if now != nil {
		a.now = now
		a.doses.WithClock(now)
		a.insights.WithClock(now)
	}
	return a
}

func (a *API) currentTime() time.Time {
	return a.now().In(a.location)
}
