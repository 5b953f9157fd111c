package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/pkg/apperr"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

// 默认打分参数
const (
	DefaultMaxRequestsPerUser = 5
	DefaultInterestWeight     = 10
	DefaultWorkFieldWeight    = 5
	// 扰动幅度上限；仅用于打散同分候选，不要求可复现
	perturbationMagnitude = 5
)

// MatchingRules 排除规则：曾婉拒/取消过会面的用户对是否不再互相推荐
type MatchingRules struct {
	ExcludeDeclined bool `json:"exclude_declined"`
	ExcludeCanceled bool `json:"exclude_canceled"`
}

// MatchingConfig 单次批量匹配的配置；零值字段回落到默认值
type MatchingConfig struct {
	MaxRequestsPerUser int           `json:"max_requests_per_user"`
	InterestWeight     int           `json:"interest_weight"`
	WorkFieldWeight    int           `json:"work_field_weight"`
	Rules              MatchingRules `json:"rules"`
}

// MatchingResult 一次批量匹配的产出概要
type MatchingResult struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// MatchingService 按兴趣/领域打分生成每人 top-k 推荐的批处理；
// 新批次整体落库后旧批次整体删除（replace-by-newer-batch）
type MatchingService interface {
	Run(ctx context.Context, eventID, triggeredBy string, cfg *MatchingConfig) (*MatchingResult, error)
	LatestBatch(ctx context.Context, eventID string) ([]*model.MatchRecommendation, error)
	LatestForUser(ctx context.Context, eventID, userID string) ([]*model.MatchRecommendation, error)
}

type matchingService struct {
	matchRepo   repository.MatchRepository
	meetingRepo repository.MeetingRepository
	eventRepo   repository.EventRepository
	directory   Directory
	notifier    Notifier
	defaults    MatchingConfig
	// randFloat 返回 [0,1) 均匀随机数；测试注入固定种子源
	randFloat func() float64
}

func NewMatchingService(
	matchRepo repository.MatchRepository,
	meetingRepo repository.MeetingRepository,
	eventRepo repository.EventRepository,
	directory Directory,
	notifier Notifier,
	defaults MatchingConfig,
	randFloat func() float64,
) MatchingService {
	if randFloat == nil {
		randFloat = rand.Float64
	}
	return &matchingService{
		matchRepo:   matchRepo,
		meetingRepo: meetingRepo,
		eventRepo:   eventRepo,
		directory:   directory,
		notifier:    notifier,
		defaults:    defaults,
		randFloat:   randFloat,
	}
}

func (s *matchingService) Run(ctx context.Context, eventID, triggeredBy string, cfg *MatchingConfig) (*MatchingResult, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "event not found")
		}
		return nil, apperr.Wrap(err, "load event")
	}
	effective := s.effectiveConfig(cfg)

	pool, err := s.directory.ActiveProfiles(ctx, eventID)
	if err != nil {
		return nil, apperr.Wrap(err, "fetch participants")
	}
	excluded, err := s.exclusionSet(ctx, eventID, effective.Rules)
	if err != nil {
		return nil, apperr.Wrap(err, "build exclusion set")
	}

	batchID := uuid.New().String()
	recs := make([]*model.MatchRecommendation, 0, len(pool)*effective.MaxRequestsPerUser)
	for _, user := range pool {
		recs = append(recs, s.rankCandidates(eventID, batchID, user, pool, excluded, effective)...)
	}

	// 先写新批次；失败则整体失败，旧批次保持可查
	if err := s.matchRepo.InsertBatch(ctx, recs); err != nil {
		return nil, apperr.Wrap(err, "insert recommendation batch")
	}
	// 新批次已生效，清理旧批次失败仅记日志
	if deleted, err := s.matchRepo.DeleteOtherBatches(ctx, eventID, batchID); err != nil {
		logger.Error("stale recommendation cleanup failed",
			zap.String("event_id", eventID),
			zap.String("batch_id", batchID),
			zap.Error(err))
	} else if deleted > 0 {
		logger.Info("stale recommendation batches removed",
			zap.String("event_id", eventID), zap.Int64("rows", deleted))
	}

	s.announce(ctx, eventID, triggeredBy)

	return &MatchingResult{
		BatchID: batchID,
		Count:   len(recs),
		Message: fmt.Sprintf("已为 %d 名参加者生成 %d 条推荐", len(pool), len(recs)),
	}, nil
}

func (s *matchingService) effectiveConfig(cfg *MatchingConfig) MatchingConfig {
	out := s.defaults
	if out.MaxRequestsPerUser <= 0 {
		out.MaxRequestsPerUser = DefaultMaxRequestsPerUser
	}
	if out.InterestWeight <= 0 {
		out.InterestWeight = DefaultInterestWeight
	}
	if out.WorkFieldWeight <= 0 {
		out.WorkFieldWeight = DefaultWorkFieldWeight
	}
	if cfg == nil {
		return out
	}
	if cfg.MaxRequestsPerUser > 0 {
		out.MaxRequestsPerUser = cfg.MaxRequestsPerUser
	}
	if cfg.InterestWeight > 0 {
		out.InterestWeight = cfg.InterestWeight
	}
	if cfg.WorkFieldWeight > 0 {
		out.WorkFieldWeight = cfg.WorkFieldWeight
	}
	out.Rules = cfg.Rules
	return out
}

// exclusionSet 收集不应互相推荐的无序用户对：
// 进行中状态恒在集合内，declined/canceled 由规则开关控制
func (s *matchingService) exclusionSet(ctx context.Context, eventID string, rules MatchingRules) (map[string]struct{}, error) {
	statuses := append([]string{}, model.ActiveMeetingStatuses...)
	if rules.ExcludeDeclined {
		statuses = append(statuses, model.MeetingDeclined)
	}
	if rules.ExcludeCanceled {
		statuses = append(statuses, model.MeetingCanceled)
	}
	meetings, err := s.meetingRepo.ListByEventStatuses(ctx, eventID, statuses)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(meetings))
	for _, m := range meetings {
		out[model.PairKey(eventID, m.RequesterID, m.ReceiverID)] = struct{}{}
	}
	return out, nil
}

type scoredCandidate struct {
	profile model.Profile
	score   int
	reasons matchReasons
}

type matchReasons struct {
	SharedInterests []string `json:"shared_interests"`
	SameWorkField   bool     `json:"same_work_field"`
}

func (s *matchingService) rankCandidates(eventID, batchID string, user model.Profile, pool []model.Profile, excluded map[string]struct{}, cfg MatchingConfig) []*model.MatchRecommendation {
	userInterests := keywordSet(user.InterestKeywords)
	candidates := make([]scoredCandidate, 0, len(pool))
	for _, cand := range pool {
		if cand.ID == user.ID {
			continue
		}
		if _, skip := excluded[model.PairKey(eventID, user.ID, cand.ID)]; skip {
			continue
		}
		shared := intersect(userInterests, cand.InterestKeywords)
		score := float64(len(shared) * cfg.InterestWeight)
		sameField := user.WorkField != "" && user.WorkField == cand.WorkField
		if sameField {
			score += float64(cfg.WorkFieldWeight)
		}
		// 均匀扰动打散同分，幅度 < perturbationMagnitude
		score += s.randFloat() * perturbationMagnitude
		candidates = append(candidates, scoredCandidate{
			profile: cand,
			score:   int(math.Round(score)),
			reasons: matchReasons{SharedInterests: shared, SameWorkField: sameField},
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > cfg.MaxRequestsPerUser {
		candidates = candidates[:cfg.MaxRequestsPerUser]
	}

	out := make([]*model.MatchRecommendation, 0, len(candidates))
	for _, c := range candidates {
		reasons, _ := json.Marshal(c.reasons)
		out = append(out, &model.MatchRecommendation{
			ID:                uuid.New().String(),
			EventID:           eventID,
			BatchID:           batchID,
			UserID:            user.ID,
			RecommendedUserID: c.profile.ID,
			Score:             c.score,
			MatchReasons:      datatypes.JSON(reasons),
		})
	}
	return out
}

func (s *matchingService) LatestBatch(ctx context.Context, eventID string) ([]*model.MatchRecommendation, error) {
	batchID, err := s.matchRepo.LatestBatchID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(err, "find latest batch")
	}
	recs, err := s.matchRepo.ListByBatch(ctx, eventID, batchID)
	if err != nil {
		return nil, apperr.Wrap(err, "list batch")
	}
	return recs, nil
}

func (s *matchingService) LatestForUser(ctx context.Context, eventID, userID string) ([]*model.MatchRecommendation, error) {
	batchID, err := s.matchRepo.LatestBatchID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(err, "find latest batch")
	}
	recs, err := s.matchRepo.ListForUser(ctx, eventID, batchID, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "list recommendations")
	}
	return recs, nil
}

// announce 批次完成后面向全体参加者的尽力而为通知
func (s *matchingService) announce(ctx context.Context, eventID, triggeredBy string) {
	n := &model.Notification{
		Title:         "推荐名单已更新",
		Message:       "为你生成了新的会面候选推荐，去看看吧",
		Type:          model.NotifyMatching,
		TargetType:    model.TargetEventParticipants,
		TargetEventID: &eventID,
		SentBy:        triggeredBy,
	}
	if outcome := s.notifier.Dispatch(ctx, n); outcome == DeliveryFailed {
		logger.Warn("matching announcement dropped", zap.String("event_id", eventID))
	}
}

func keywordSet(keywords []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

func intersect(set map[string]struct{}, keywords []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := set[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
