package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"laundrylink-backend/config"
	"laundrylink-backend/internal/auth"
	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/db"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/notification"
	"laundrylink-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notification.Job
}

func (r *recordingNotifier) Notify(job notification.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
}

func (r *recordingNotifier) types() []model.NotificationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NotificationType, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.Type
	}
	return out
}

type testEnv struct {
	router   *gin.Engine
	store    store.Store
	feed     *changefeed.Broker
	tokens   *auth.Manager
	handler  *Handler
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := db.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, logger.Silent)
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(context.Background(), gormDB))

	feed := changefeed.NewBroker(16)
	st := store.NewGormStore(gormDB, feed, nil)
	require.NoError(t, st.SeedServices(context.Background(), model.DefaultServices))
	tokens, err := auth.NewManager("api-test-secret", time.Hour)
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	h := NewHandler(Deps{
		Store:    st,
		Tokens:   tokens,
		Feed:     feed,
		Notifier: notifier,
		WebPush:  &webpush.Options{VAPIDPublicKey: "test-public-key"},
		Location: time.UTC,
		Logger:   zap.NewNop().Sugar(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}

	return &testEnv{
		router:   NewRouter(ctx, h, cfg, zap.NewNop()),
		store:    st,
		feed:     feed,
		tokens:   tokens,
		handler:  h,
		notifier: notifier,
	}
}

// user creates a profile with the given role and returns it with a token.
func (e *testEnv) user(t *testing.T, email string, role model.Role) (*model.Profile, string) {
	t.Helper()
	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	p := &model.Profile{Email: email, FullName: email, Role: role, PasswordHash: hash}
	require.NoError(t, e.store.CreateProfile(context.Background(), p))
	token, _, err := e.tokens.Issue(p)
	require.NoError(t, err)
	return p, token
}

func (e *testEnv) machine(t *testing.T, id, qr string) *model.Machine {
	t.Helper()
	code := qr
	m := &model.Machine{ID: id, Name: "Washer " + id, Type: model.MachineWasher, Location: "Block A", IsActive: true, QRCode: &code}
	require.NoError(t, e.store.UpsertMachine(context.Background(), m))
	return m
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}
