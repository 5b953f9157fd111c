package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

// DeliveryOutcome 通知投递结果
type DeliveryOutcome int

const (
	DeliveredPrivileged DeliveryOutcome = iota + 1
	DeliveredStandard
	DeliveryFailed
)

func (o DeliveryOutcome) String() string {
	switch o {
	case DeliveredPrivileged:
		return "delivered-privileged"
	case DeliveredStandard:
		return "delivered-standard"
	}
	return "failed"
}

// ErrPolicyDenied 标准路径的行级写入策略拒绝
var ErrPolicyDenied = errors.New("notification write denied by row policy")

// NotificationWriter 单一投递路径
type NotificationWriter interface {
	Write(ctx context.Context, n *model.Notification) error
}

// RepoWriter 直接落库（特权路径：连接本身具备跨用户写权限）
type RepoWriter struct{ Repo repository.NotificationRepository }

func (w RepoWriter) Write(ctx context.Context, n *model.Notification) error {
	return w.Repo.Create(ctx, n)
}

// PolicyWriter 标准路径：落库前套用行级写入策略，
// 模拟普通用户凭证下共享 notifications 表的授权边界
type PolicyWriter struct {
	Repo   repository.NotificationRepository
	Policy func(n *model.Notification) error
}

func (w PolicyWriter) Write(ctx context.Context, n *model.Notification) error {
	policy := w.Policy
	if policy == nil {
		policy = DefaultWritePolicy
	}
	if err := policy(n); err != nil {
		return err
	}
	return w.Repo.Create(ctx, n)
}

// DefaultWritePolicy 普通凭证只允许写定向到单个用户的通知；
// 面向全体/全活动的广播需要特权路径
func DefaultWritePolicy(n *model.Notification) error {
	if n.TargetType != model.TargetSpecific || n.UserID == nil {
		return ErrPolicyDenied
	}
	return nil
}

// Notifier 尽力而为的通知分发：特权路径优先，失败回退标准路径，
// 两条路径都失败仅记日志，绝不影响调用方主操作
type Notifier interface {
	Dispatch(ctx context.Context, n *model.Notification) DeliveryOutcome
}

type dispatcher struct {
	privileged NotificationWriter // 可为 nil（未配置特权凭证的环境）
	standard   NotificationWriter
	fanout     *NotificationFanout // 可为 nil
}

func NewNotifier(privileged, standard NotificationWriter, fanout *NotificationFanout) Notifier {
	return &dispatcher{privileged: privileged, standard: standard, fanout: fanout}
}

func (d *dispatcher) Dispatch(ctx context.Context, n *model.Notification) DeliveryOutcome {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = model.NotificationSent
	}

	if d.privileged != nil {
		if err := d.privileged.Write(ctx, n); err == nil {
			d.enqueueFanout(n)
			return DeliveredPrivileged
		} else {
			logger.Warn("privileged notification write failed, falling back",
				zap.String("type", n.Type), zap.Error(err))
		}
	}

	if err := d.standard.Write(ctx, n); err == nil {
		d.enqueueFanout(n)
		return DeliveredStandard
	} else {
		logger.Error("notification delivery failed on both paths",
			zap.String("type", n.Type),
			zap.String("target_type", n.TargetType),
			zap.Error(err))
	}
	return DeliveryFailed
}

func (d *dispatcher) enqueueFanout(n *model.Notification) {
	if d.fanout == nil || n.TargetType != model.TargetEventParticipants || n.TargetEventID == nil {
		return
	}
	d.fanout.Enqueue(n)
}
