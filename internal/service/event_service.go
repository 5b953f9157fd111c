package service

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/apperr"
)

// 参加码字符集：去掉易混淆的 0/O/1/I
const joinCodeCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
const joinCodeLength = 6

// EventInput 创建活动的输入
type EventInput struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Location string    `json:"location"`
	Capacity int       `json:"capacity"`
	IsPublic bool      `json:"is_public"`
}

// SlotInput 新增会面时段的输入
type SlotInput struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Label    string    `json:"label"`
}

// EventService 活动与参加管理（核心之外的薄协作层）
type EventService interface {
	Create(ctx context.Context, creatorID string, in EventInput) (*model.Event, error)
	Get(ctx context.Context, eventID string) (*model.Event, error)
	ListPublic(ctx context.Context, page, pageSize int) ([]*model.Event, error)
	JoinByCode(ctx context.Context, userID, code string) (*model.Event, error)
	CancelParticipation(ctx context.Context, eventID, userID string) error
	AddSlots(ctx context.Context, eventID string, inputs []SlotInput) ([]*model.TimeSlot, error)
	ListSlots(ctx context.Context, eventID string) ([]*model.TimeSlot, error)
	ListParticipants(ctx context.Context, eventID string) ([]model.Profile, error)
}

type eventService struct {
	eventRepo       repository.EventRepository
	participantRepo repository.ParticipantRepository
	slotRepo        repository.SlotRepository
	directory       Directory
}

func NewEventService(eventRepo repository.EventRepository, participantRepo repository.ParticipantRepository, slotRepo repository.SlotRepository, directory Directory) EventService {
	return &eventService{
		eventRepo:       eventRepo,
		participantRepo: participantRepo,
		slotRepo:        slotRepo,
		directory:       directory,
	}
}

func (s *eventService) Create(ctx context.Context, creatorID string, in EventInput) (*model.Event, error) {
	if in.Title == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "title is required")
	}
	if !in.EndsAt.After(in.StartsAt) {
		return nil, apperr.New(apperr.CodeInvalidArgument, "ends_at must be after starts_at")
	}
	e := &model.Event{
		ID:        uuid.New().String(),
		Title:     in.Title,
		StartsAt:  in.StartsAt,
		EndsAt:    in.EndsAt,
		Location:  in.Location,
		Capacity:  in.Capacity,
		IsPublic:  in.IsPublic,
		CreatedBy: creatorID,
	}
	// 参加码唯一索引冲突时重新生成
	for attempt := 0; attempt < 5; attempt++ {
		e.JoinCode = generateJoinCode()
		err := s.eventRepo.Create(ctx, e)
		if err == nil {
			// 创建者自动成为参加者
			if err := s.participantRepo.Join(ctx, e.ID, creatorID); err != nil {
				return nil, apperr.Wrap(err, "join own event")
			}
			return e, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(err, "create event")
		}
	}
	return nil, apperr.New(apperr.CodeInternal, "could not allocate a unique join code")
}

func (s *eventService) Get(ctx context.Context, eventID string) (*model.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "event not found")
		}
		return nil, apperr.Wrap(err, "load event")
	}
	return e, nil
}

func (s *eventService) ListPublic(ctx context.Context, page, pageSize int) ([]*model.Event, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	res, err := s.eventRepo.ListPublic(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, apperr.Wrap(err, "list events")
	}
	return res, nil
}

func (s *eventService) JoinByCode(ctx context.Context, userID, code string) (*model.Event, error) {
	e, err := s.eventRepo.GetByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "no event with this join code")
		}
		return nil, apperr.Wrap(err, "load event")
	}
	if e.Capacity > 0 {
		cnt, err := s.participantRepo.CountActive(ctx, e.ID)
		if err != nil {
			return nil, apperr.Wrap(err, "count participants")
		}
		if cnt >= int64(e.Capacity) {
			return nil, apperr.New(apperr.CodeConflict, "event is full")
		}
	}
	if err := s.participantRepo.Join(ctx, e.ID, userID); err != nil {
		return nil, apperr.Wrap(err, "join event")
	}
	s.directory.InvalidateEvent(ctx, e.ID)
	return e, nil
}

func (s *eventService) CancelParticipation(ctx context.Context, eventID, userID string) error {
	if err := s.participantRepo.Cancel(ctx, eventID, userID); err != nil {
		return apperr.Wrap(err, "cancel participation")
	}
	s.directory.InvalidateEvent(ctx, eventID)
	return nil
}

func (s *eventService) AddSlots(ctx context.Context, eventID string, inputs []SlotInput) ([]*model.TimeSlot, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "no slots given")
	}
	if _, err := s.Get(ctx, eventID); err != nil {
		return nil, err
	}
	slots := make([]*model.TimeSlot, 0, len(inputs))
	for _, in := range inputs {
		if !in.EndsAt.After(in.StartsAt) {
			return nil, apperr.New(apperr.CodeInvalidArgument, "slot ends_at must be after starts_at")
		}
		slots = append(slots, &model.TimeSlot{
			ID:       uuid.New().String(),
			EventID:  eventID,
			StartsAt: in.StartsAt,
			EndsAt:   in.EndsAt,
			Label:    in.Label,
		})
	}
	if err := s.slotRepo.CreateBatch(ctx, slots); err != nil {
		return nil, apperr.Wrap(err, "create slots")
	}
	return slots, nil
}

func (s *eventService) ListSlots(ctx context.Context, eventID string) ([]*model.TimeSlot, error) {
	slots, err := s.slotRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "list slots")
	}
	return slots, nil
}

func (s *eventService) ListParticipants(ctx context.Context, eventID string) ([]model.Profile, error) {
	profiles, err := s.directory.ActiveProfiles(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "list participants")
	}
	return profiles, nil
}

func generateJoinCode() string {
	buf := make([]byte, joinCodeLength)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = joinCodeCharset[int(b)%len(joinCodeCharset)]
	}
	return string(buf)
}
