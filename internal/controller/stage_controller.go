package controller

import (
	"strconv"

	"learnpath_backend/internal/service"
	"learnpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StageController struct {
	StageService    *service.StageService
	ProgressService *service.ProgressService
}

func NewStageController(stageService *service.StageService, progressService *service.ProgressService) *StageController {
	return &StageController{StageService: stageService, ProgressService: progressService}
}

// @Summary 创建关卡（追加到小节末尾）
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "小节ID"
// @Param stage body service.StageContentSetsRequest true "必修/选修内容ID集合"
// @Success 201 {object} util.Response
// @Router /api/authoring/sections/{id}/stages [post]
func (c *StageController) CreateStage(ctx *gin.Context) {
	sectionID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid section id")
		return
	}

	var req service.StageContentSetsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stage, err := c.StageService.CreateStage(uint(sectionID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, stage)
}

// @Summary 替换关卡的内容集合
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "关卡ID"
// @Param stage body service.StageContentSetsRequest true "必修/选修内容ID集合"
// @Success 200 {object} util.Response
// @Router /api/authoring/stages/{id}/contents [put]
func (c *StageController) UpdateStage(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	var req service.StageContentSetsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stage, err := c.StageService.UpdateStage(uint(id), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stage)
}

// @Summary 删除关卡并回填兄弟关卡位置
// @Tags 课程结构
// @Security BearerAuth
// @Param id path int true "关卡ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/stages/{id} [delete]
func (c *StageController) DeleteStage(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.StageService.DeleteStage(uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

type moveStageRequest struct {
	Position *int `json:"position" binding:"required"`
}

// @Summary 移动关卡到小节内的目标位置（越界自动截断）
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "关卡ID"
// @Param move body moveStageRequest true "目标位置"
// @Success 200 {object} util.Response
// @Router /api/authoring/stages/{id}/position [put]
func (c *StageController) MoveStage(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	var req moveStageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stage, err := c.StageService.MoveStage(uint(id), *req.Position)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stage)
}

// @Summary 小节内关卡全量重排
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "小节ID"
// @Param order body reorderRequest true "按新顺序排列的关卡ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/sections/{id}/stages/order [put]
func (c *StageController) ReorderStages(ctx *gin.Context) {
	sectionID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid section id")
		return
	}

	var req reorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stages, err := c.StageService.ReorderStages(uint(sectionID), req.OrderedIDs)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, stages)
}

// @Summary 小节内关卡列表（按位置升序，含内容引用）
// @Tags 课程结构
// @Security BearerAuth
// @Param sectionId path int true "小节ID"
// @Success 200 {object} util.Response
// @Router /api/sections/{sectionId}/stages [get]
func (c *StageController) ListStages(ctx *gin.Context) {
	sectionID, err := strconv.Atoi(ctx.Param("sectionId"))
	if err != nil {
		util.BadRequest(ctx, "invalid section id")
		return
	}

	stages, err := c.StageService.StageRepo.FindBySection(uint(sectionID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, stages)
}

// @Summary 查询关卡对当前用户是否可进入
// @Tags 学习进度
// @Security BearerAuth
// @Param id path int true "关卡ID"
// @Success 200 {object} util.Response
// @Router /api/stages/{id}/availability [get]
func (c *StageController) StageAvailability(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	available, err := c.ProgressService.IsAvailable(uint(id), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"stageId": id, "available": available})
}
