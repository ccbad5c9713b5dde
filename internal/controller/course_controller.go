package controller

import (
	"strconv"

	"learnpath_backend/internal/service"
	"learnpath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// @Summary 创建课程
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param course body service.CourseCreateRequest true "课程信息"
// @Success 201 {object} util.Response
// @Router /api/authoring/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req service.CourseCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 创建章节
// @Tags 课程结构
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Param chapter body service.ChapterCreateRequest true "章节信息"
// @Success 201 {object} util.Response
// @Router /api/authoring/courses/{courseId}/chapters [post]
func (c *CourseController) CreateChapter(ctx *gin.Context) {
	courseID, err := strconv.Atoi(ctx.Param("courseId"))
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	var req service.ChapterCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapter, err := c.CourseService.CreateChapter(uint(courseID), req)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, chapter)
}

// @Summary 课程下的章节列表
// @Tags 课程结构
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{courseId}/chapters [get]
func (c *CourseController) ListChapters(ctx *gin.Context) {
	courseID, err := strconv.Atoi(ctx.Param("courseId"))
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	chapters, err := c.CourseService.ListChapters(uint(courseID))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, chapters)
}
