package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ndrop/internal/api/middleware"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/response"
)

type joinEventRequest struct {
	Code string `json:"code" binding:"required,joincode"`
}

// CreateEvent 创建活动
// @Summary 创建活动
// @Tags 活动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.EventInput true "活动信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	var in service.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	e, err := h.eventSvc.Create(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, e)
}

// ListEvents 公开活动列表
// @Summary 活动列表
// @Tags 活动
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	list, err := h.eventSvc.ListPublic(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// GetEvent 活动详情
// @Summary 活动详情
// @Tags 活动
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/events/{event_id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	e, err := h.eventSvc.Get(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, e)
}

// JoinEvent 凭参加码加入活动
// @Summary 加入活动
// @Tags 活动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body joinEventRequest true "参加码"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/events/join [post]
func (h *Handler) JoinEvent(c *gin.Context) {
	var req joinEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	e, err := h.eventSvc.JoinByCode(c.Request.Context(), middleware.CurrentUserID(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, e)
}

// LeaveEvent 取消参加
// @Summary 取消参加
// @Tags 活动
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/participation [delete]
func (h *Handler) LeaveEvent(c *gin.Context) {
	if err := h.eventSvc.CancelParticipation(c.Request.Context(), c.Param("event_id"), middleware.CurrentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListParticipants 活动参加者名片列表
// @Summary 参加者列表
// @Tags 活动
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/participants [get]
func (h *Handler) ListParticipants(c *gin.Context) {
	profiles, err := h.eventSvc.ListParticipants(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profiles)
}

// AddSlots 批量新增会面时段（管理员）
// @Summary 新增会面时段
// @Tags 活动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Param request body []service.SlotInput true "时段列表"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/events/{event_id}/slots [post]
func (h *Handler) AddSlots(c *gin.Context) {
	var inputs []service.SlotInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	slots, err := h.eventSvc.AddSlots(c.Request.Context(), c.Param("event_id"), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, slots)
}

// ListSlots 活动会面时段列表
// @Summary 时段列表
// @Tags 活动
// @Produce json
// @Security BearerAuth
// @Param event_id path string true "活动ID"
// @Success 200 {object} response.Response
// @Router /api/v1/events/{event_id}/slots [get]
func (h *Handler) ListSlots(c *gin.Context) {
	slots, err := h.eventSvc.ListSlots(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, slots)
}
