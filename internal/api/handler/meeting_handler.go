package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ndrop/internal/api/middleware"
	"github.com/d60-Lab/ndrop/pkg/response"
)

type requestMeetingRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Message    string `json:"message"`
}

type transitionMeetingRequest struct {
	Status string  `json:"status" binding:"required"`
	SlotID *string `json:"slot_id"`
}

type postMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// RequestMeeting 发起会面请求
// @Summary 发起会面请求
// @Tags 会面
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param request body requestMeetingRequest true "请求信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/events/{event_id}/meetings [post]
func (h *Handler) RequestMeeting(c *gin.Context) {
	var req requestMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.meetingSvc.Request(c.Request.Context(), c.Param("event_id"), middleware.CurrentUserID(c), req.ReceiverID, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}

// ListMeetings 当前用户在该活动内的会面列表（含双方名片）
// @Summary 会面列表
// @Tags 会面
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/meetings [get]
func (h *Handler) ListMeetings(c *gin.Context) {
	list, err := h.meetingSvc.ListMeetings(c.Request.Context(), c.Param("event_id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// TransitionMeeting 会面状态迁移（接受/婉拒/取消/确认）
// @Summary 会面状态迁移
// @Tags 会面
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param meeting_id path string true "会面ID"
// @Param request body transitionMeetingRequest true "目标状态与可选时段"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/events/{event_id}/meetings/{meeting_id} [patch]
func (h *Handler) TransitionMeeting(c *gin.Context) {
	var req transitionMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.meetingSvc.Transition(c.Request.Context(), c.Param("meeting_id"), middleware.CurrentUserID(c), req.Status, req.SlotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}

// PostMeetingMessage 会面内发送聊天消息
// @Summary 发送聊天消息
// @Tags 会面
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param meeting_id path string true "会面ID"
// @Param request body postMessageRequest true "消息内容"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/events/{event_id}/meetings/{meeting_id}/messages [post]
func (h *Handler) PostMeetingMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.meetingSvc.PostMessage(c.Request.Context(), c.Param("meeting_id"), middleware.CurrentUserID(c), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, msg)
}

// ListMeetingMessages 会面聊天记录
// @Summary 聊天记录
// @Tags 会面
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param meeting_id path string true "会面ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/meetings/{meeting_id}/messages [get]
func (h *Handler) ListMeetingMessages(c *gin.Context) {
	list, err := h.meetingSvc.ListMessages(c.Request.Context(), c.Param("meeting_id"), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
