package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/apperr"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

// chatPreviewLimit 聊天通知正文的截断长度（按 rune 计）
const chatPreviewLimit = 50

// MeetingView 会面 + 双方名片的展示视图
type MeetingView struct {
	model.Meeting
	RequesterProfile model.Profile `json:"requester_profile"`
	ReceiverProfile  model.Profile `json:"receiver_profile"`
	IsReceived       bool          `json:"is_received"`
	OtherProfile     model.Profile `json:"other_profile"`
}

// MessageView 消息 + 发送者名片
type MessageView struct {
	model.MeetingMessage
	SenderProfile model.Profile `json:"sender_profile"`
}

// MeetingService 会面请求的状态机：
// pending → accepted | declined；accepted → confirmed | canceled
type MeetingService interface {
	Request(ctx context.Context, eventID, requesterID, receiverID, message string) (*model.Meeting, error)
	Transition(ctx context.Context, meetingID, actorID, target string, slotID *string) (*model.Meeting, error)
	PostMessage(ctx context.Context, meetingID, senderID, content string) (*MessageView, error)
	ListMeetings(ctx context.Context, eventID, userID string) ([]MeetingView, error)
	ListMessages(ctx context.Context, meetingID, userID string) ([]MessageView, error)
}

type meetingService struct {
	meetingRepo repository.MeetingRepository
	messageRepo repository.MessageRepository
	slotRepo    repository.SlotRepository
	eventRepo   repository.EventRepository
	directory   Directory
	notifier    Notifier
}

func NewMeetingService(
	meetingRepo repository.MeetingRepository,
	messageRepo repository.MessageRepository,
	slotRepo repository.SlotRepository,
	eventRepo repository.EventRepository,
	directory Directory,
	notifier Notifier,
) MeetingService {
	return &meetingService{
		meetingRepo: meetingRepo,
		messageRepo: messageRepo,
		slotRepo:    slotRepo,
		eventRepo:   eventRepo,
		directory:   directory,
		notifier:    notifier,
	}
}

func (s *meetingService) Request(ctx context.Context, eventID, requesterID, receiverID, message string) (*model.Meeting, error) {
	if receiverID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "receiver is required")
	}
	if requesterID == receiverID {
		return nil, apperr.New(apperr.CodeInvalidArgument, "cannot request a meeting with yourself")
	}
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "event not found")
		}
		return nil, apperr.Wrap(err, "load event")
	}

	// 预检：同一无序用户对在该活动内已有进行中的会面
	if _, err := s.meetingRepo.FindActiveByPair(ctx, eventID, requesterID, receiverID); err == nil {
		return nil, apperr.New(apperr.CodeConflict, "an active meeting already exists between these participants")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(err, "check active meeting")
	}

	pair := model.PairKey(eventID, requesterID, receiverID)
	m := &model.Meeting{
		ID:          uuid.New().String(),
		EventID:     eventID,
		RequesterID: requesterID,
		ReceiverID:  receiverID,
		Status:      model.MeetingPending,
		Message:     message,
		ActivePair:  &pair,
	}
	if err := s.meetingRepo.Create(ctx, m); err != nil {
		// 唯一索引兜底并发下的重复请求
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.CodeConflict, "an active meeting already exists between these participants")
		}
		return nil, apperr.Wrap(err, "create meeting")
	}

	s.notifyMeeting(ctx, m, requesterID, receiverID, model.NotifyMeetingRequest,
		"会面请求", "%s 向你发起了会面请求")
	return m, nil
}

func (s *meetingService) Transition(ctx context.Context, meetingID, actorID, target string, slotID *string) (*model.Meeting, error) {
	if !model.ValidMeetingTarget(target) {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "invalid target status %q", target)
	}
	m, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "meeting not found")
		}
		return nil, apperr.Wrap(err, "load meeting")
	}

	switch target {
	case model.MeetingAccepted, model.MeetingDeclined:
		if actorID != m.ReceiverID {
			return nil, apperr.New(apperr.CodeForbidden, "only the receiver may accept or decline")
		}
		if m.Status != model.MeetingPending {
			return nil, apperr.Newf(apperr.CodeFailedPrecondition, "meeting is %s, not pending", m.Status)
		}
	case model.MeetingCanceled:
		if actorID != m.RequesterID {
			return nil, apperr.New(apperr.CodeForbidden, "only the requester may cancel")
		}
		if m.Status != model.MeetingPending && m.Status != model.MeetingAccepted {
			return nil, apperr.Newf(apperr.CodeFailedPrecondition, "meeting is %s, cannot cancel", m.Status)
		}
	case model.MeetingConfirmed:
		if actorID != m.RequesterID && actorID != m.ReceiverID {
			return nil, apperr.New(apperr.CodeForbidden, "only a participant may confirm")
		}
		// 幂等重确认：已 confirmed 且时段一致时放行到时段校验
		if m.Status != model.MeetingAccepted && m.Status != model.MeetingConfirmed {
			return nil, apperr.Newf(apperr.CodeFailedPrecondition, "meeting must be accepted before confirmation (current: %s)", m.Status)
		}
		if slotID == nil || *slotID == "" {
			return nil, apperr.New(apperr.CodeInvalidArgument, "slot_id is required for confirmation")
		}
		slot, err := s.slotRepo.GetByID(ctx, *slotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.New(apperr.CodeInvalidArgument, "invalid slot")
			}
			return nil, apperr.Wrap(err, "load slot")
		}
		if slot.EventID != m.EventID {
			return nil, apperr.New(apperr.CodeInvalidArgument, "invalid slot")
		}
		// 排他性检查不含当前会面自身
		taken, err := s.meetingRepo.SlotConfirmedByOther(ctx, *slotID, m.ID)
		if err != nil {
			return nil, apperr.Wrap(err, "check slot availability")
		}
		if taken {
			return nil, apperr.New(apperr.CodeConflict, "slot already booked")
		}
	}

	apply(m, target, slotID)
	if err := s.meetingRepo.Update(ctx, m); err != nil {
		// 并发确认同一时段时唯一索引决出唯一赢家
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.New(apperr.CodeConflict, "slot already booked")
		}
		return nil, apperr.Wrap(err, "update meeting")
	}

	other := m.Other(actorID)
	title, body := transitionCopy(target)
	s.notifyMeeting(ctx, m, actorID, other, model.NotifyMeetingUpdate, title, body)
	return m, nil
}

// apply 落实状态迁移对应的列变化
func apply(m *model.Meeting, target string, slotID *string) {
	m.Status = target
	switch target {
	case model.MeetingConfirmed:
		m.SlotID = slotID
		m.BookedSlotID = slotID
	case model.MeetingDeclined, model.MeetingCanceled:
		// 终态释放用户对与时段占用
		m.ActivePair = nil
		m.BookedSlotID = nil
	}
}

func transitionCopy(target string) (title, body string) {
	switch target {
	case model.MeetingAccepted:
		return "会面已接受", "%s 接受了你的会面请求"
	case model.MeetingDeclined:
		return "会面被婉拒", "%s 婉拒了你的会面请求"
	case model.MeetingConfirmed:
		return "会面已确认", "%s 确认了会面时段，记得准时赴约"
	default:
		return "会面已取消", "%s 取消了会面请求"
	}
}

func (s *meetingService) PostMessage(ctx context.Context, meetingID, senderID, content string) (*MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "message content is empty")
	}
	m, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "meeting not found")
		}
		return nil, apperr.Wrap(err, "load meeting")
	}
	if senderID != m.RequesterID && senderID != m.ReceiverID {
		return nil, apperr.New(apperr.CodeForbidden, "sender is not a participant of this meeting")
	}

	msg := &model.MeetingMessage{
		ID:        uuid.New().String(),
		MeetingID: m.ID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, apperr.Wrap(err, "create message")
	}

	other := m.Other(senderID)
	s.dispatch(ctx, m, senderID, other, model.NotifyMeetingChat,
		"新的聊天消息", truncateRunes(content, chatPreviewLimit))

	view := &MessageView{MeetingMessage: *msg}
	if p, err := s.directory.Profile(ctx, senderID); err == nil {
		view.SenderProfile = *p
	}
	return view, nil
}

func (s *meetingService) ListMeetings(ctx context.Context, eventID, userID string) ([]MeetingView, error) {
	meetings, err := s.meetingRepo.ListByUser(ctx, eventID, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "list meetings")
	}
	ids := make([]string, 0, len(meetings)*2)
	for _, m := range meetings {
		ids = append(ids, m.RequesterID, m.ReceiverID)
	}
	profiles, err := s.directory.Profiles(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(err, "load profiles")
	}
	out := make([]MeetingView, 0, len(meetings))
	for _, m := range meetings {
		v := MeetingView{
			Meeting:          *m,
			RequesterProfile: profiles[m.RequesterID],
			ReceiverProfile:  profiles[m.ReceiverID],
			IsReceived:       m.ReceiverID == userID,
		}
		if v.IsReceived {
			v.OtherProfile = v.RequesterProfile
		} else {
			v.OtherProfile = v.ReceiverProfile
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *meetingService) ListMessages(ctx context.Context, meetingID, userID string) ([]MessageView, error) {
	m, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "meeting not found")
		}
		return nil, apperr.Wrap(err, "load meeting")
	}
	if userID != m.RequesterID && userID != m.ReceiverID {
		return nil, apperr.New(apperr.CodeForbidden, "not a participant of this meeting")
	}
	msgs, err := s.messageRepo.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, apperr.Wrap(err, "list messages")
	}
	profiles, err := s.directory.Profiles(ctx, []string{m.RequesterID, m.ReceiverID})
	if err != nil {
		return nil, apperr.Wrap(err, "load profiles")
	}
	out := make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, MessageView{MeetingMessage: *msg, SenderProfile: profiles[msg.SenderID]})
	}
	return out, nil
}

// notifyMeeting 用 bodyFormat 填入行为方昵称后投递；失败只记日志
func (s *meetingService) notifyMeeting(ctx context.Context, m *model.Meeting, actorID, recipientID, typ, title, bodyFormat string) {
	actorName := actorID
	if p, err := s.directory.Profile(ctx, actorID); err == nil && p.Nickname != "" {
		actorName = p.Nickname
	}
	s.dispatch(ctx, m, actorID, recipientID, typ, title, fmt.Sprintf(bodyFormat, actorName))
}

func (s *meetingService) dispatch(ctx context.Context, m *model.Meeting, actorID, recipientID, typ, title, body string) {
	meta, _ := json.Marshal(map[string]string{"meeting_id": m.ID, "status": m.Status})
	n := &model.Notification{
		UserID:     &recipientID,
		Title:      title,
		Message:    body,
		Type:       typ,
		TargetType: model.TargetSpecific,
		Metadata:   datatypes.JSON(meta),
		SentBy:     actorID,
	}
	if outcome := s.notifier.Dispatch(ctx, n); outcome == DeliveryFailed {
		logger.Warn("meeting notification dropped",
			zap.String("meeting_id", m.ID),
			zap.String("type", typ),
			zap.String("recipient", recipientID))
	}
}

// truncateRunes 超过 limit 个 rune 时截断并追加省略号；存储内容不受影响
func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
