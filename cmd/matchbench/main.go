package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/d60-Lab/ndrop/config"
	"github.com/d60-Lab/ndrop/internal/model"
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/database"
	"github.com/d60-Lab/ndrop/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

var fields = []string{"saas", "fintech", "hardware", "media", "hr", "logistics"}
var keywords = []string{"ai", "web3", "marketing", "design", "sales", "devops", "data", "mobile", "iot", "security"}

// 批量匹配基准：N 名参加者跑一轮 runMatching，输出耗时与行数
func main() {
	_ = logger.Init("warn", true)
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	N := 1000
	if s := os.Getenv("N"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			N = n
		}
	}
	K := 5
	if s := os.Getenv("K"); s != "" {
		if k, err := strconv.Atoi(s); err == nil && k > 0 {
			K = k
		}
	}

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	ctx := context.Background()

	event := &model.Event{
		ID:       uuid.New().String(),
		Title:    "matchbench",
		StartsAt: time.Now(),
		EndsAt:   time.Now().Add(4 * time.Hour),
		JoinCode: uuid.New().String()[:6],
	}
	check(eventRepo.Create(ctx, event))

	// seed participants with random interest/field profiles
	for i := 0; i < N; i++ {
		ks := make([]string, 0, 3)
		for _, j := range rand.Perm(len(keywords))[:3] {
			ks = append(ks, keywords[j])
		}
		raw, _ := json.Marshal(ks)
		u := &model.User{
			ID:               uuid.New().String(),
			Email:            fmt.Sprintf("bench-%s@example.com", uuid.New().String()[:8]),
			Password:         "p",
			Nickname:         fmt.Sprintf("bench-%04d", i),
			WorkField:        fields[rand.Intn(len(fields))],
			InterestKeywords: datatypes.JSON(raw),
		}
		check(userRepo.Create(ctx, u))
		check(participantRepo.Join(ctx, event.ID, u.ID))
	}

	directory := service.NewDirectory(userRepo, participantRepo, nil, time.Minute)
	notifier := service.NewNotifier(service.RepoWriter{Repo: notifRepo}, service.PolicyWriter{Repo: notifRepo}, nil)
	matching := service.NewMatchingService(matchRepo, meetingRepo, eventRepo, directory, notifier, service.MatchingConfig{MaxRequestsPerUser: K}, nil)

	start := time.Now()
	res := must(matching.Run(ctx, event.ID, "matchbench", nil))
	elapsed := time.Since(start)

	fmt.Printf("participants=%d k=%d rows=%d batch=%s elapsed=%s (%.1f rows/s)\n",
		N, K, res.Count, res.BatchID, elapsed, float64(res.Count)/elapsed.Seconds())
}
