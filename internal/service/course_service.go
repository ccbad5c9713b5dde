package service

import (
	"errors"
	"fmt"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/util"

	"gorm.io/gorm"
)

// CourseService 课程与章节的结构父级。引擎主要消费它们的存在性，
// 这里只提供最小的建档与浏览能力。
type CourseService struct {
	CourseRepo *repository.CourseRepository
	DB         *gorm.DB
}

func NewCourseService(courseRepo *repository.CourseRepository, db *gorm.DB) *CourseService {
	return &CourseService{CourseRepo: courseRepo, DB: db}
}

type CourseCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (s *CourseService) CreateCourse(req CourseCreateRequest) (*model.Course, error) {
	course := &model.Course{Title: req.Title, Description: req.Description}
	if err := s.DB.Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

type ChapterCreateRequest struct {
	Title string `json:"title" binding:"required"`
}

func (s *CourseService) CreateChapter(courseID uint, req ChapterCreateRequest) (*model.Chapter, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: course %d", util.ErrNotFound, courseID)
		}
		return nil, err
	}

	chapter := &model.Chapter{CourseID: courseID, Title: req.Title}
	if err := s.DB.Create(chapter).Error; err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *CourseService) ListChapters(courseID uint) ([]model.Chapter, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: course %d", util.ErrNotFound, courseID)
		}
		return nil, err
	}
	return s.CourseRepo.ListChapters(courseID)
}
