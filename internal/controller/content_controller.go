package controller

import (
	"strconv"

	"learnpath_backend/internal/service"
	"learnpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

// @Summary 创建内容（媒体或测评）
// @Tags 内容管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Param content body service.ContentCreateRequest true "内容信息"
// @Success 201 {object} util.Response
// @Router /api/authoring/chapters/{chapterId}/contents [post]
func (c *ContentController) CreateContent(ctx *gin.Context) {
	chapterID, err := strconv.Atoi(ctx.Param("chapterId"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	var req service.ContentCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	content, err := c.ContentService.CreateContent(uint(chapterID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, content)
}

// @Summary 内容详情（含标签与测评条目）
// @Tags 内容管理
// @Security BearerAuth
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{id} [get]
func (c *ContentController) GetContent(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	content, err := c.ContentService.GetContent(uint(id))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// @Summary 章节内内容列表
// @Tags 内容管理
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/chapters/{chapterId}/contents [get]
func (c *ContentController) ListContents(ctx *gin.Context) {
	chapterID, err := strconv.Atoi(ctx.Param("chapterId"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	contents, err := c.ContentService.ContentRepo.ListByChapter(uint(chapterID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, contents)
}

// @Summary 删除内容（同时清理关卡引用与测评条目）
// @Tags 内容管理
// @Security BearerAuth
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/contents/{id} [delete]
func (c *ContentController) DeleteContent(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.ContentService.DeleteContent(uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

// @Summary 上传媒体文件并探测时长
// @Tags 内容管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "内容ID"
// @Param file formData file true "媒体文件"
// @Success 200 {object} util.Response
// @Router /api/authoring/contents/{id}/media [post]
func (c *ContentController) UploadMedia(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "media file is required")
		return
	}

	content, err := c.ContentService.UploadMedia(ctx.Request.Context(), uint(id), file)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// @Summary 标签列表
// @Tags 内容管理
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/tags [get]
func (c *ContentController) ListTags(ctx *gin.Context) {
	tags, err := c.ContentService.ListTags()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, tags)
}
