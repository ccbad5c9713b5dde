package controller

import (
	"strconv"

	"learnpath_backend/internal/service"
	"learnpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// @Summary 评分结果回写：为内容追加一条进度日志
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "内容ID"
// @Param log body service.AppendLogRequest true "本次作答结果"
// @Success 200 {object} util.Response
// @Router /api/contents/{id}/progress/log [post]
func (c *ProgressController) AppendLogItem(ctx *gin.Context) {
	contentID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid content id")
		return
	}

	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AppendLogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	data, err := c.ProgressService.AppendLogItem(user.UserID, uint(contentID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, data)
}

// @Summary 查询当前用户在某内容上的进度状态与日志
// @Tags 学习进度
// @Security BearerAuth
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{id}/progress [get]
func (c *ProgressController) GetUserProgress(ctx *gin.Context) {
	contentID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid content id")
		return
	}

	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	resp, err := c.ProgressService.GetUserProgressData(user.UserID, uint(contentID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}

// @Summary 查询当前用户在某关卡上的完成度
// @Tags 学习进度
// @Security BearerAuth
// @Param id path int true "关卡ID"
// @Success 200 {object} util.Response
// @Router /api/stages/{id}/progress [get]
func (c *ProgressController) GetStageProgress(ctx *gin.Context) {
	stageID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	progress, err := c.ProgressService.StageProgressFor(uint(stageID), user.UserID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
