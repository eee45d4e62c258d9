package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/medipredict/internal/config"
	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/metrics"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlerTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func testConfig() config.AppConfig {
	return config.AppConfig{
		SessionSecret:      "test-session-secret",
		ReminderWindow:     30 * time.Minute,
		EstimatorIdleTTL:   time.Hour,
		CacheSweepInterval: time.Minute,
		LoginRatePerMinute: 60,
		LoginBurst:         20,
		Timezone:           "UTC",
	}
}

type testServer struct {
	api    *API
	engine *gin.Engine
	cookie []*http.Cookie
}

func newTestServer(t *testing.T, cfg config.AppConfig) (*testServer, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, cleanup := setupHandlerTestDB(t)
	api := NewAPI(gdb, cfg, metrics.New(), nil)
	api.users.WithHashCost(bcrypt.MinCost)

	r := gin.New()
	r.Use(sessions.Sessions("medipredict_test", cookie.NewStore([]byte(cfg.SessionSecret))))
	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", api.MetricsHandler())
	r.POST("/api/register", api.Register)
	r.POST("/api/login", api.Login)
	r.POST("/api/logout", api.Logout)

	auth := r.Group("/api")
	auth.Use(AuthRequired())
	auth.GET("/profile", api.GetProfile)
	auth.PUT("/profile", api.UpdateProfile)
	auth.GET("/medications", api.ListMedications)
	auth.POST("/medications", api.CreateMedication)
	auth.GET("/medications/due", api.DueMedications)
	auth.GET("/medications/:id", api.GetMedication)
	auth.GET("/doses", api.ListDoses)
	auth.POST("/doses", api.LogDose)
	auth.GET("/insights", api.GetInsights)
	auth.GET("/insights/population", api.GetPopulationInsights)
	auth.GET("/insights/risk/:handle", api.QueryRisk)

	return &testServer{api: api, engine: r}, cleanup
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range s.cookie {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		s.cookie = cookies
	}
	return w
}

func (s *testServer) registerAndLogin(t *testing.T, username string) {
	t.Helper()
	if w := s.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "password": "secret123"}); w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/login", gin.H{"username": username, "password": "secret123"}); w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, w.Body.String())
	}
}
