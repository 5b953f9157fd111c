package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
)

// Directory exposes participant/profile reads for the meeting and matching
// cores. Reads go through a cache-aside layer over Redis; a nil cache client
// degrades to straight DB reads.
type Directory interface {
	// ActiveProfiles 活动的全部有效参加者名片
	ActiveProfiles(ctx context.Context, eventID string) ([]model.Profile, error)
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	Profiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error)
	// Invalidate 资料或参加状态变更后失效对应缓存键
	InvalidateUser(ctx context.Context, userID string)
	InvalidateEvent(ctx context.Context, eventID string)
}

type directory struct {
	userRepo        repository.UserRepository
	participantRepo repository.ParticipantRepository
	cache           *redis.Client
	ttl             time.Duration
}

func NewDirectory(userRepo repository.UserRepository, participantRepo repository.ParticipantRepository, cache *redis.Client, ttl time.Duration) Directory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &directory{userRepo: userRepo, participantRepo: participantRepo, cache: cache, ttl: ttl}
}

func eventProfilesKey(eventID string) string { return fmt.Sprintf("dir:event:%s:profiles", eventID) }
func userProfileKey(userID string) string    { return fmt.Sprintf("dir:user:%s", userID) }

func (d *directory) ActiveProfiles(ctx context.Context, eventID string) ([]model.Profile, error) {
	key := eventProfilesKey(eventID)
	if d.cache != nil {
		if data, err := d.cache.Get(ctx, key).Bytes(); err == nil {
			var out []model.Profile
			if uErr := json.Unmarshal(data, &out); uErr == nil {
				return out, nil
			}
		}
	}

	participants, err := d.participantRepo.ListActive(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.UserID
	}
	users, err := d.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToProfile())
	}

	if d.cache != nil {
		if payload, err := json.Marshal(out); err == nil {
			_ = d.cache.Set(ctx, key, payload, d.ttl).Err()
		}
	}
	return out, nil
}

func (d *directory) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	key := userProfileKey(userID)
	if d.cache != nil {
		if data, err := d.cache.Get(ctx, key).Bytes(); err == nil {
			var p model.Profile
			if uErr := json.Unmarshal(data, &p); uErr == nil {
				return &p, nil
			}
		}
	}
	u, err := d.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := u.ToProfile()
	if d.cache != nil {
		if payload, err := json.Marshal(p); err == nil {
			_ = d.cache.Set(ctx, key, payload, d.ttl).Err()
		}
	}
	return &p, nil
}

// Profiles 批量读取；一次 IN 查询，不逐个走缓存
func (d *directory) Profiles(ctx context.Context, userIDs []string) (map[string]model.Profile, error) {
	users, err := d.userRepo.ListByIDs(ctx, dedup(userIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Profile, len(users))
	for _, u := range users {
		out[u.ID] = u.ToProfile()
	}
	return out, nil
}

func (d *directory) InvalidateUser(ctx context.Context, userID string) {
	if d.cache == nil {
		return
	}
	_ = d.cache.Del(ctx, userProfileKey(userID)).Err()
}

func (d *directory) InvalidateEvent(ctx context.Context, eventID string) {
	if d.cache == nil {
		return
	}
	_ = d.cache.Del(ctx, eventProfilesKey(eventID)).Err()
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
