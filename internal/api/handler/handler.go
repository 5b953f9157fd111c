package handler

import (
	"github.com/d60-Lab/ndrop/internal/repository"
	"github.com/d60-Lab/ndrop/internal/service"
)

// Handler 聚合全部 HTTP 处理器依赖
type Handler struct {
	authSvc     service.AuthService
	eventSvc    service.EventService
	meetingSvc  service.MeetingService
	matchingSvc service.MatchingService
	notifRepo   repository.NotificationRepository
}

func New(
	authSvc service.AuthService,
	eventSvc service.EventService,
	meetingSvc service.MeetingService,
	matchingSvc service.MatchingService,
	notifRepo repository.NotificationRepository,
) *Handler {
	return &Handler{
		authSvc:     authSvc,
		eventSvc:    eventSvc,
		meetingSvc:  meetingSvc,
		matchingSvc: matchingSvc,
		notifRepo:   notifRepo,
	}
}
