package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Event{}, &model.EventParticipant{}, &model.TimeSlot{},
		&model.Meeting{}, &model.MeetingMessage{}, &model.Notification{}, &model.MatchRecommendation{},
	))
	return db
}

// fixture 服务层集成测试的最小装配（真实仓储 + 落库通知）
type fixture struct {
	db              *gorm.DB
	userRepo        repository.UserRepository
	eventRepo       repository.EventRepository
	participantRepo repository.ParticipantRepository
	slotRepo        repository.SlotRepository
	meetingRepo     repository.MeetingRepository
	messageRepo     repository.MessageRepository
	notifRepo       repository.NotificationRepository
	matchRepo       repository.MatchRepository

	directory Directory
	notifier  Notifier
	meetings  MeetingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		eventRepo:       repository.NewEventRepository(db),
		participantRepo: repository.NewParticipantRepository(db),
		slotRepo:        repository.NewSlotRepository(db),
		meetingRepo:     repository.NewMeetingRepository(db),
		messageRepo:     repository.NewMessageRepository(db),
		notifRepo:       repository.NewNotificationRepository(db),
		matchRepo:       repository.NewMatchRepository(db),
	}
	f.directory = NewDirectory(f.userRepo, f.participantRepo, nil, time.Minute)
	f.notifier = NewNotifier(RepoWriter{Repo: f.notifRepo}, PolicyWriter{Repo: f.notifRepo}, nil)
	f.meetings = NewMeetingService(f.meetingRepo, f.messageRepo, f.slotRepo, f.eventRepo, f.directory, f.notifier)
	return f
}

func (f *fixture) seedUser(t *testing.T, nickname, workField string, interests ...string) *model.User {
	t.Helper()
	raw, _ := json.Marshal(interests)
	u := &model.User{
		ID:               uuid.New().String(),
		Email:            fmt.Sprintf("%s-%s@example.com", nickname, uuid.New().String()[:8]),
		Password:         "p",
		Nickname:         nickname,
		WorkField:        workField,
		InterestKeywords: datatypes.JSON(raw),
	}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return u
}

func (f *fixture) seedEvent(t *testing.T) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:       uuid.New().String(),
		Title:    "test event",
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(4 * time.Hour),
		JoinCode: uuid.New().String()[:6],
		IsPublic: true,
	}
	require.NoError(t, f.eventRepo.Create(context.Background(), e))
	return e
}

func (f *fixture) join(t *testing.T, eventID string, users ...*model.User) {
	t.Helper()
	for _, u := range users {
		require.NoError(t, f.participantRepo.Join(context.Background(), eventID, u.ID))
	}
}

func (f *fixture) seedSlot(t *testing.T, eventID string) *model.TimeSlot {
	t.Helper()
	s := &model.TimeSlot{
		ID:       uuid.New().String(),
		EventID:  eventID,
		StartsAt: time.Now().Add(time.Hour),
		EndsAt:   time.Now().Add(time.Hour + 20*time.Minute),
	}
	require.NoError(t, f.slotRepo.CreateBatch(context.Background(), []*model.TimeSlot{s}))
	return s
}

func (f *fixture) notifications(t *testing.T, typ string) []*model.Notification {
	t.Helper()
	var out []*model.Notification
	require.NoError(t, f.db.Where("type = ?", typ).Order("created_at").Find(&out).Error)
	return out
}
