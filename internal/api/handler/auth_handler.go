package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/ndrop/internal/api/middleware"
	"github.com/d60-Lab/ndrop/internal/service"
	"github.com/d60-Lab/ndrop/pkg/response"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Nickname string `json:"nickname" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register 注册并签发 token
// @Summary 注册
// @Tags 身份
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, token, err := h.authSvc.Register(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user": u, "token": token})
}

// Login 登录
// @Summary 登录
// @Tags 身份
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录信息"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, token, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"user": u, "token": token})
}

// Me 当前用户资料
// @Summary 当前用户
// @Tags 身份
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /api/v1/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	u, err := h.authSvc.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// UpdateProfile 编辑数字名片
// @Summary 更新名片
// @Tags 身份
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ProfileUpdate true "名片字段"
// @Success 200 {object} response.Response
// @Router /api/v1/users/me [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var upd service.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.authSvc.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), upd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}
