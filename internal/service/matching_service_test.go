package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/apperr"
)

// zeroRand 关闭扰动，得到可断言的确定性分数
func zeroRand() float64 { return 0 }

func newMatching(f *fixture, randFloat func() float64) MatchingService {
	return NewMatchingService(f.matchRepo, f.meetingRepo, f.eventRepo, f.directory, f.notifier, MatchingConfig{}, randFloat)
}

func TestMatching_ScoresAndTopK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)

	a := f.seedUser(t, "alice", "saas", "ai", "devops", "data")
	b := f.seedUser(t, "bob", "saas", "ai", "devops")   // 2 共同兴趣 + 同领域 = 25
	c := f.seedUser(t, "carol", "media", "ai")          // 1 共同兴趣 = 10
	d := f.seedUser(t, "dave", "saas")                  // 同领域 = 5
	x := f.seedUser(t, "erin", "hardware", "security")  // 0
	f.join(t, e.ID, a, b, c, d, x)

	svc := newMatching(f, zeroRand)
	res, err := svc.Run(ctx, e.ID, "admin", &MatchingConfig{MaxRequestsPerUser: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, res.BatchID)
	// 5 人 × 每人至多 2 条
	assert.LessOrEqual(t, res.Count, 10)

	recs, err := f.matchRepo.ListForUser(ctx, e.ID, res.BatchID, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, b.ID, recs[0].RecommendedUserID)
	assert.Equal(t, 25, recs[0].Score)
	assert.Equal(t, c.ID, recs[1].RecommendedUserID)
	assert.Equal(t, 10, recs[1].Score)

	var reasons matchReasons
	require.NoError(t, json.Unmarshal(recs[0].MatchReasons, &reasons))
	assert.ElementsMatch(t, []string{"ai", "devops"}, reasons.SharedInterests)
	assert.True(t, reasons.SameWorkField)

	// 不推荐自己
	for _, r := range recs {
		assert.NotEqual(t, a.ID, r.RecommendedUserID)
	}
}

func TestMatching_ExclusionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	f.join(t, e.ID, a, b)

	// 进行中的会面恒排除
	m, err := f.meetings.Request(ctx, e.ID, a.ID, b.ID, "")
	require.NoError(t, err)

	svc := newMatching(f, zeroRand)
	res, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)

	// 婉拒后默认重新可推荐
	_, err = f.meetings.Transition(ctx, m.ID, b.ID, model.MeetingDeclined, nil)
	require.NoError(t, err)
	res, err = svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	// exclude_declined 打开后不再互相推荐
	res, err = svc.Run(ctx, e.ID, "admin", &MatchingConfig{Rules: MatchingRules{ExcludeDeclined: true}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestMatching_ReplaceByNewerBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	c := f.seedUser(t, "carol", "saas", "ai")
	f.join(t, e.ID, a, b, c)

	svc := newMatching(f, zeroRand)
	first, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)
	second, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)
	require.NotEqual(t, first.BatchID, second.BatchID)

	// 旧批次整体消失，只剩最新批次
	var rows []*model.MatchRecommendation
	require.NoError(t, f.db.Where("event_id = ?", e.ID).Find(&rows).Error)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.Equal(t, second.BatchID, r.BatchID)
	}
}

type insertFailingMatchRepo struct {
	repository.MatchRepository
	err error
}

func (r insertFailingMatchRepo) InsertBatch(ctx context.Context, recs []*model.MatchRecommendation) error {
	return r.err
}

func TestMatching_InsertFailureKeepsOldBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	f.join(t, e.ID, a, b)

	good := newMatching(f, zeroRand)
	first, err := good.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)
	require.Equal(t, 2, first.Count)

	broken := NewMatchingService(
		insertFailingMatchRepo{MatchRepository: f.matchRepo, err: errors.New("disk full")},
		f.meetingRepo, f.eventRepo, f.directory, f.notifier, MatchingConfig{}, zeroRand,
	)
	_, err = broken.Run(ctx, e.ID, "admin", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeInternal))

	// 失败的批次不触碰旧数据
	var rows []*model.MatchRecommendation
	require.NoError(t, f.db.Where("event_id = ?", e.ID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, first.BatchID, r.BatchID)
	}
}

func TestMatching_PerturbationBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	f.join(t, e.ID, a, b)

	// 扰动取上界时分数四舍五入到 base+5 以内
	almostOne := func() float64 { return 0.999 }
	svc := newMatching(f, almostOne)
	res, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)

	recs, err := f.matchRepo.ListByBatch(ctx, e.ID, res.BatchID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	base := DefaultInterestWeight + DefaultWorkFieldWeight // 1 共同兴趣 + 同领域
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Score, base)
		assert.LessOrEqual(t, r.Score, base+perturbationMagnitude)
	}
}

func TestMatching_AnnouncesToParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	f.join(t, e.ID, a, b)

	svc := newMatching(f, zeroRand)
	_, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)

	ns := f.notifications(t, model.NotifyMatching)
	require.Len(t, ns, 1)
	assert.Equal(t, model.TargetEventParticipants, ns[0].TargetType)
	require.NotNil(t, ns[0].TargetEventID)
	assert.Equal(t, e.ID, *ns[0].TargetEventID)
}

func TestMatching_EventNotFound(t *testing.T) {
	f := newFixture(t)
	svc := newMatching(f, zeroRand)
	_, err := svc.Run(context.Background(), "missing", "admin", nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestMatching_LatestForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.seedEvent(t)
	a := f.seedUser(t, "alice", "saas", "ai")
	b := f.seedUser(t, "bob", "saas", "ai")
	f.join(t, e.ID, a, b)

	svc := newMatching(f, zeroRand)
	res, err := svc.Run(ctx, e.ID, "admin", nil)
	require.NoError(t, err)

	mine, err := svc.LatestForUser(ctx, e.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, res.BatchID, mine[0].BatchID)
	assert.Equal(t, b.ID, mine[0].RecommendedUserID)

	// 无批次时返回空
	empty, err := svc.LatestForUser(ctx, "other-event", a.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
