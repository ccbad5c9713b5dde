package controller

import (
	"strconv"

	"learnpath_backend/internal/service"
	"learnpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SectionController struct {
	SectionService *service.SectionService
}

func NewSectionController(sectionService *service.SectionService) *SectionController {
	return &SectionController{SectionService: sectionService}
}

// @Summary 创建小节
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Param section body service.SectionCreateRequest true "小节信息"
// @Success 201 {object} util.Response
// @Router /api/authoring/chapters/{chapterId}/sections [post]
func (c *SectionController) CreateSection(ctx *gin.Context) {
	chapterID, err := strconv.Atoi(ctx.Param("chapterId"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	var req service.SectionCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	section, err := c.SectionService.CreateSection(uint(chapterID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, section)
}

type sectionNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// @Summary 修改小节名称
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "小节ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/sections/{id}/name [put]
func (c *SectionController) UpdateSectionName(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	var req sectionNameRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	section, err := c.SectionService.UpdateSectionName(uint(id), req.Name)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, section)
}

// @Summary 删除小节（级联删除其下全部 Stage）
// @Tags 课程结构
// @Security BearerAuth
// @Param id path int true "小节ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/sections/{id} [delete]
func (c *SectionController) DeleteSection(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.SectionService.DeleteSection(uint(id)); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id})
}

type reorderRequest struct {
	OrderedIDs []uint `json:"orderedIds" binding:"required"`
}

// @Summary 章节内小节全量重排
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Param order body reorderRequest true "按新顺序排列的小节ID"
// @Success 200 {object} util.Response
// @Router /api/authoring/chapters/{chapterId}/sections/order [put]
func (c *SectionController) ReorderSections(ctx *gin.Context) {
	chapterID, err := strconv.Atoi(ctx.Param("chapterId"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	var req reorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sections, err := c.SectionService.ReorderSections(uint(chapterID), req.OrderedIDs)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, sections)
}

// @Summary 章节内小节列表（按位置升序）
// @Tags 课程结构
// @Security BearerAuth
// @Param chapterId path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/chapters/{chapterId}/sections [get]
func (c *SectionController) ListSections(ctx *gin.Context) {
	chapterID, err := strconv.Atoi(ctx.Param("chapterId"))
	if err != nil {
		util.BadRequest(ctx, "invalid chapter id")
		return
	}

	sections, err := c.SectionService.SectionRepo.FindByChapter(uint(chapterID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, sections)
}
