// 手动初始化演示课程数据脚本
//
// 在空库上建一门演示课程：一个章节、两个小节、若干学习阶段和内容，
// 并通过服务层写入以保证位置序列和内容集合校验与线上行为一致。
// 仅用于首次部署后的冒烟验证或本地开发环境。
//
// 用法: go run scripts/seed_demo.go
package main

import (
	"log"
	"os"

	"learnpath_backend/internal/config"
	"learnpath_backend/internal/model"
	"learnpath_backend/internal/repository"
	"learnpath_backend/internal/service"
	"learnpath_backend/pkg/database"
	"learnpath_backend/pkg/events"
	"learnpath_backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	var courseCount int64
	db.Model(&model.Course{}).Count(&courseCount)
	if courseCount > 0 {
		log.Println("数据库已有课程数据，跳过初始化")
		return
	}

	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	stageRepo := repository.NewStageRepository(db)
	contentRepo := repository.NewContentRepository(db)
	notifier := events.NoopNotifier{}

	courseSvc := service.NewCourseService(courseRepo, db)
	sectionSvc := service.NewSectionService(sectionRepo, courseRepo, db, notifier)
	stageSvc := service.NewStageService(stageRepo, sectionRepo, contentRepo, db, notifier)

	course, err := courseSvc.CreateCourse(service.CourseCreateRequest{
		Title:       "演示课程",
		Description: "首次部署冒烟验证用",
	})
	if err != nil {
		log.Fatalf("创建课程失败: %v", err)
	}

	chapter, err := courseSvc.CreateChapter(course.ID, service.ChapterCreateRequest{Title: "第一章"})
	if err != nil {
		log.Fatalf("创建章节失败: %v", err)
	}

	contents := []model.Content{
		{Kind: model.MediaContent, ChapterID: chapter.ID, CourseID: course.ID, Title: "入门视频"},
		{Kind: model.AssessmentContent, ChapterID: chapter.ID, CourseID: course.ID, Title: "入门测评"},
		{Kind: model.MediaContent, ChapterID: chapter.ID, CourseID: course.ID, Title: "拓展阅读"},
	}
	for i := range contents {
		if err := db.Create(&contents[i]).Error; err != nil {
			log.Fatalf("创建内容失败: %v", err)
		}
	}

	sectionNames := []string{"基础", "进阶"}
	for _, name := range sectionNames {
		sec, err := sectionSvc.CreateSection(chapter.ID, service.SectionCreateRequest{Name: name})
		if err != nil {
			log.Fatalf("创建小节失败: %v", err)
		}

		if _, err := stageSvc.CreateStage(sec.ID, service.StageContentSetsRequest{
			RequiredContentIDs: []uint{contents[0].ID, contents[1].ID},
			OptionalContentIDs: []uint{contents[2].ID},
		}); err != nil {
			log.Fatalf("创建学习阶段失败: %v", err)
		}
		if _, err := stageSvc.CreateStage(sec.ID, service.StageContentSetsRequest{
			RequiredContentIDs: []uint{contents[1].ID},
		}); err != nil {
			log.Fatalf("创建学习阶段失败: %v", err)
		}
	}

	log.Println("演示数据初始化完成")
}
