package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/ndrop/config"
	"github.com/d60-Lab/ndrop/internal/api"
	"github.com/d60-Lab/ndrop/internal/api/handler"
	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

const testJWTSecret = "handler-test-secret"

type testServer struct {
	db     *gorm.DB
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	_ = logger.Init("error", true)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Event{}, &model.EventParticipant{}, &model.TimeSlot{},
		&model.Meeting{}, &model.MeetingMessage{}, &model.Notification{}, &model.MatchRecommendation{},
	))

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	matchRepo := repository.NewMatchRepository(db)

	directory := service.NewDirectory(userRepo, participantRepo, nil, time.Minute)
	notifier := service.NewNotifier(service.RepoWriter{Repo: notifRepo}, service.PolicyWriter{Repo: notifRepo}, nil)

	authSvc := service.NewAuthService(userRepo, directory, testJWTSecret, time.Hour)
	eventSvc := service.NewEventService(eventRepo, participantRepo, slotRepo, directory)
	meetingSvc := service.NewMeetingService(meetingRepo, messageRepo, slotRepo, eventRepo, directory, notifier)
	matchingSvc := service.NewMatchingService(matchRepo, meetingRepo, eventRepo, directory, notifier, service.MatchingConfig{}, nil)

	h := handler.New(authSvc, eventSvc, meetingSvc, matchingSvc, notifRepo)

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.RateLimitQPS = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.JWT.Secret = testJWTSecret
	cfg.Trace.ServiceName = "ndrop-test"

	return &testServer{db: db, router: api.NewRouter(cfg, h)}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

// register 注册并返回 (userID, token)
func (s *testServer) register(t *testing.T, nickname string) (string, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    fmt.Sprintf("%s@example.com", nickname),
		"password": "password123",
		"nickname": nickname,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		User  model.User `json:"user"`
		Token string     `json:"token"`
	}
	decodeData(t, w, &data)
	require.NotEmpty(t, data.Token)
	return data.User.ID, data.Token
}

// registerAdmin 注册后提权并重新登录拿管理员 token
func (s *testServer) registerAdmin(t *testing.T, nickname string) string {
	t.Helper()
	userID, _ := s.register(t, nickname)
	require.NoError(t, s.db.Model(&model.User{}).Where("id = ?", userID).Update("is_admin", true).Error)
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    fmt.Sprintf("%s@example.com", nickname),
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &data)
	return data.Token
}

func (s *testServer) createEvent(t *testing.T, token string) *model.Event {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/events", token, map[string]any{
		"title":     "demo night",
		"starts_at": time.Now().Format(time.RFC3339),
		"ends_at":   time.Now().Add(4 * time.Hour).Format(time.RFC3339),
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var e model.Event
	decodeData(t, w, &e)
	require.NotEmpty(t, e.JoinCode)
	return &e
}

func TestRoutes_RequireAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/events", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMeetingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.register(t, "alice")
	bobID, bobToken := s.register(t, "bob")

	e := s.createEvent(t, aliceToken)
	w := s.do(t, http.MethodPost, "/api/v1/events/join", bobToken, map[string]any{"code": e.JoinCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 发起会面
	path := fmt.Sprintf("/api/v1/events/%s/meetings", e.ID)
	w = s.do(t, http.MethodPost, path, aliceToken, map[string]any{"receiver_id": bobID, "message": "hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var m model.Meeting
	decodeData(t, w, &m)
	assert.Equal(t, model.MeetingPending, m.Status)

	// 同一对用户重复发起 → 409
	w = s.do(t, http.MethodPost, path, aliceToken, map[string]any{"receiver_id": bobID})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 发起方不能替接收方接受 → 403
	patchPath := fmt.Sprintf("/api/v1/events/%s/meetings/%s", e.ID, m.ID)
	w = s.do(t, http.MethodPatch, patchPath, aliceToken, map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 接收方接受 → 200
	w = s.do(t, http.MethodPatch, patchPath, bobToken, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 未选时段直接确认 → 400
	w = s.do(t, http.MethodPatch, patchPath, bobToken, map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 聊天
	msgPath := patchPath + "/messages"
	w = s.do(t, http.MethodPost, msgPath, aliceToken, map[string]any{"content": "see you at the booth"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, msgPath, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 双方列表都能看到这条会面
	w = s.do(t, http.MethodGet, path, bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []json.RawMessage
	decodeData(t, w, &list)
	assert.Len(t, list, 1)
}

func TestJoinEvent_CodeValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.register(t, "alice")

	// 含易混淆字符/长度不符的参加码直接被校验器拒绝
	for _, code := range []string{"ABC", "ABCDE0", "abcdef", "AAAAAAA"} {
		w := s.do(t, http.MethodPost, "/api/v1/events/join", token, map[string]any{"code": code})
		assert.Equal(t, http.StatusBadRequest, w.Code, code)
	}

	w := s.do(t, http.MethodPost, "/api/v1/events/join", token, map[string]any{"code": "AAAAAA"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchingRoutes_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.register(t, "alice")
	adminToken := s.registerAdmin(t, "root")

	e := s.createEvent(t, aliceToken)
	runPath := fmt.Sprintf("/api/v1/admin/events/%s/matching/run", e.ID)

	w := s.do(t, http.MethodPost, runPath, aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, runPath, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.MatchingResult
	decodeData(t, w, &res)
	assert.NotEmpty(t, res.BatchID)

	// 普通用户读自己的推荐
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/events/%s/recommendations", e.ID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.register(t, "alice")
	bobID, bobToken := s.register(t, "bob")

	e := s.createEvent(t, aliceToken)
	w := s.do(t, http.MethodPost, "/api/v1/events/join", bobToken, map[string]any{"code": e.JoinCode})
	require.Equal(t, http.StatusOK, w.Code)

	// 会面请求触发接收方通知
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%s/meetings", e.ID), aliceToken,
		map[string]any{"receiver_id": bobID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		List []model.Notification `json:"list"`
	}
	decodeData(t, w, &page)
	require.Len(t, page.List, 1)

	readPath := fmt.Sprintf("/api/v1/notifications/%s/read", page.List[0].ID)
	w = s.do(t, http.MethodPost, readPath, bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 重复标记或他人通知 → 404
	w = s.do(t, http.MethodPost, "/api/v1/notifications/nope/read", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
