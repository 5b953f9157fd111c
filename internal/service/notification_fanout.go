package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

type fanoutJob struct {
	notification *model.Notification
	enqAt        time.Time
}

// NotificationFanout 把面向全活动参加者的通知在请求路径之外
// 展开为每人一行的投递记录（简单的本地异步执行器）
type NotificationFanout struct {
	participantRepo  repository.ParticipantRepository
	notificationRepo repository.NotificationRepository
	ch               chan fanoutJob
}

func NewNotificationFanout(participantRepo repository.ParticipantRepository, notificationRepo repository.NotificationRepository, queueSize int) *NotificationFanout {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &NotificationFanout{
		participantRepo:  participantRepo,
		notificationRepo: notificationRepo,
		ch:               make(chan fanoutJob, queueSize),
	}
}

// Start 启动 worker；返回停止函数
func (f *NotificationFanout) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case job := <-f.ch:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					f.expand(ctx, job.notification)
					cancel()
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		// 等待队列自然排空一小段时间
		timeout := time.After(2 * time.Second)
		for {
			select {
			case <-timeout:
				return nil
			default:
				if len(f.ch) == 0 {
					return nil
				}
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

func (f *NotificationFanout) Enqueue(n *model.Notification) {
	select {
	case f.ch <- fanoutJob{notification: n, enqAt: time.Now()}:
	default:
		logger.Warn("notification fanout queue full, drop",
			zap.String("notification_id", n.ID))
	}
}

// Drain 同步处理队列中现存任务（测试用）
func (f *NotificationFanout) Drain(ctx context.Context) {
	for {
		select {
		case job := <-f.ch:
			f.expand(ctx, job.notification)
		default:
			return
		}
	}
}

func (f *NotificationFanout) expand(ctx context.Context, parent *model.Notification) {
	if parent.TargetEventID == nil {
		return
	}
	participants, err := f.participantRepo.ListActive(ctx, *parent.TargetEventID)
	if err != nil {
		logger.Error("fanout: list participants failed",
			zap.String("event_id", *parent.TargetEventID), zap.Error(err))
		return
	}
	rows := make([]*model.Notification, 0, len(participants))
	now := time.Now()
	for _, p := range participants {
		if p.UserID == parent.SentBy {
			continue
		}
		uid := p.UserID
		rows = append(rows, &model.Notification{
			ID:            uuid.New().String(),
			UserID:        &uid,
			Title:         parent.Title,
			Message:       parent.Message,
			Type:          parent.Type,
			TargetType:    model.TargetSpecific,
			TargetEventID: parent.TargetEventID,
			Metadata:      parent.Metadata,
			SentBy:        parent.SentBy,
			Status:        model.NotificationSent,
			CreatedAt:     now,
		})
	}
	if err := f.notificationRepo.CreateBatch(ctx, rows); err != nil {
		logger.Error("fanout: batch insert failed",
			zap.String("notification_id", parent.ID), zap.Error(err))
	}
}
