package service

import (
	"fmt"
	"testing"
	"time"

	"learnpath_backend/internal/config"
	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/pkg/events"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 每个测试独立的内存库。cache=shared 保证
// gorm 连接池里的多个连接看到同一份数据。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&model.Course{},
		&model.Chapter{},
		&model.Tag{},
		&model.Content{},
		&model.AssessmentItem{},
		&model.Section{},
		&model.Stage{},
		&model.StageContent{},
		&model.UserProgressData{},
		&model.ProgressLogItem{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testReviewConfig() config.ReviewConfig {
	return config.ReviewConfig{InitialIntervalDays: 1, MaxIntervalDays: 64}
}

// createCourseChapter 基础夹具：一门课加一个章节
func createCourseChapter(t *testing.T, db *gorm.DB) (*model.Course, *model.Chapter) {
	t.Helper()
	course := &model.Course{Title: "General English"}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to create course: %v", err)
	}
	chapter := &model.Chapter{CourseID: course.ID, Title: "Unit 1"}
	if err := db.Create(chapter).Error; err != nil {
		t.Fatalf("failed to create chapter: %v", err)
	}
	return course, chapter
}

func createSection(t *testing.T, db *gorm.DB, chapter *model.Chapter, name string, position int) *model.Section {
	t.Helper()
	section := &model.Section{
		ChapterID: chapter.ID,
		CourseID:  chapter.CourseID,
		Name:      name,
		Position:  position,
	}
	if err := db.Create(section).Error; err != nil {
		t.Fatalf("failed to create section: %v", err)
	}
	return section
}

func createContent(t *testing.T, db *gorm.DB, chapter *model.Chapter, title string) *model.Content {
	t.Helper()
	content := &model.Content{
		Kind:      model.AssessmentContent,
		ChapterID: chapter.ID,
		CourseID:  chapter.CourseID,
		Title:     title,
	}
	if err := db.Create(content).Error; err != nil {
		t.Fatalf("failed to create content: %v", err)
	}
	return content
}

func newSectionService(db *gorm.DB) *SectionService {
	return NewSectionService(
		repository.NewSectionRepository(db),
		repository.NewCourseRepository(db),
		db,
		events.NoopNotifier{},
	)
}

func newStageService(db *gorm.DB) *StageService {
	return NewStageService(
		repository.NewStageRepository(db),
		repository.NewSectionRepository(db),
		repository.NewContentRepository(db),
		db,
		events.NoopNotifier{},
	)
}

func newProgressService(db *gorm.DB) *ProgressService {
	return NewProgressService(
		repository.NewProgressRepository(db),
		repository.NewStageRepository(db),
		repository.NewContentRepository(db),
		NewReviewService(testReviewConfig()),
		db,
		nil,
		0,
	)
}

func daysAgo(n int) time.Time {
	return time.Now().AddDate(0, 0, -n)
}
