package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/ndrop/internal/model"
)

type failingWriter struct{ err error }

func (w failingWriter) Write(ctx context.Context, n *model.Notification) error { return w.err }

func specificTo(userID, sentBy string) *model.Notification {
	return &model.Notification{
		UserID:     &userID,
		Title:      "t",
		Message:    "m",
		Type:       model.NotifyMeetingUpdate,
		TargetType: model.TargetSpecific,
		SentBy:     sentBy,
	}
}

func TestDispatch_PrivilegedFirst(t *testing.T) {
	f := newFixture(t)
	n := specificTo("u1", "u2")
	outcome := f.notifier.Dispatch(context.Background(), n)
	assert.Equal(t, DeliveredPrivileged, outcome)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Notification{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestDispatch_FallsBackToStandardPath(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("privileged credentials rejected")
	notifier := NewNotifier(failingWriter{err: boom}, PolicyWriter{Repo: f.notifRepo}, nil)

	outcome := notifier.Dispatch(context.Background(), specificTo("u1", "u2"))
	assert.Equal(t, DeliveredStandard, outcome)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Notification{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestDispatch_BothPathsFailIsSwallowed(t *testing.T) {
	boom := errors.New("store down")
	notifier := NewNotifier(failingWriter{err: boom}, failingWriter{err: boom}, nil)

	// 不 panic、不返回错误，仅记录失败结果
	outcome := notifier.Dispatch(context.Background(), specificTo("u1", "u2"))
	assert.Equal(t, DeliveryFailed, outcome)
}

func TestStandardPath_RejectsBroadcast(t *testing.T) {
	f := newFixture(t)
	// 无特权路径的环境：广播类通知被行级策略拒绝
	notifier := NewNotifier(nil, PolicyWriter{Repo: f.notifRepo}, nil)
	eventID := "e1"
	n := &model.Notification{
		Title:         "batch done",
		Type:          model.NotifyMatching,
		TargetType:    model.TargetEventParticipants,
		TargetEventID: &eventID,
		SentBy:        "admin",
	}
	outcome := notifier.Dispatch(context.Background(), n)
	assert.Equal(t, DeliveryFailed, outcome)

	var cnt int64
	require.NoError(t, f.db.Model(&model.Notification{}).Count(&cnt).Error)
	assert.EqualValues(t, 0, cnt)
}

func TestFanout_ExpandsEventBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedUser(t, "alice", "saas")
	b := f.seedUser(t, "bob", "fintech")
	c := f.seedUser(t, "carol", "media")
	e := f.seedEvent(t)
	f.join(t, e.ID, a, b, c)

	fanout := NewNotificationFanout(f.participantRepo, f.notifRepo, 16)
	notifier := NewNotifier(RepoWriter{Repo: f.notifRepo}, PolicyWriter{Repo: f.notifRepo}, fanout)

	n := &model.Notification{
		Title:         "推荐名单已更新",
		Message:       "body",
		Type:          model.NotifyMatching,
		TargetType:    model.TargetEventParticipants,
		TargetEventID: &e.ID,
		SentBy:        a.ID,
	}
	outcome := notifier.Dispatch(ctx, n)
	require.Equal(t, DeliveredPrivileged, outcome)

	fanout.Drain(ctx)

	// 触发者之外的每名参加者各得一行定向通知
	var rows []*model.Notification
	require.NoError(t, f.db.Where("type = ? AND target_type = ?", model.NotifyMatching, model.TargetSpecific).Find(&rows).Error)
	require.Len(t, rows, 2)
	got := map[string]bool{}
	for _, r := range rows {
		require.NotNil(t, r.UserID)
		got[*r.UserID] = true
	}
	assert.True(t, got[b.ID])
	assert.True(t, got[c.ID])
	assert.False(t, got[a.ID])
}
