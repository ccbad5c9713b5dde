package service

import (
	"errors"
	"testing"
	"time"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID uint = 42

func appendLog(t *testing.T, svc *ProgressService, contentID uint, success bool, at time.Time) *model.UserProgressData {
	t.Helper()
	data, err := svc.AppendLogItem(testUserID, contentID, AppendLogRequest{
		Timestamp: &at,
		Success:   success,
		Score:     0.8,
	})
	require.NoError(t, err)
	return data
}

func TestProgressService_AppendLogItem(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newProgressService(db)
	content := createContent(t, db, chapter, "quiz")

	t.Run("内容不存在返回未找到", func(t *testing.T) {
		_, err := svc.AppendLogItem(testUserID, 9999, AppendLogRequest{Success: true})
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("首次成功建档并设初始间隔", func(t *testing.T) {
		data := appendLog(t, svc, content.ID, true, daysAgo(3))
		require.NotNil(t, data.LearningInterval)
		assert.Equal(t, 1, *data.LearningInterval)
		require.Len(t, data.Log, 1)
		assert.True(t, data.Log[0].Success)
	})

	t.Run("再次成功间隔翻倍", func(t *testing.T) {
		data := appendLog(t, svc, content.ID, true, daysAgo(2))
		require.NotNil(t, data.LearningInterval)
		assert.Equal(t, 2, *data.LearningInterval)
		assert.Len(t, data.Log, 2)
	})

	t.Run("失败重置间隔但保留日志", func(t *testing.T) {
		data := appendLog(t, svc, content.ID, false, daysAgo(1))
		assert.Nil(t, data.LearningInterval)
		assert.Len(t, data.Log, 3)
	})

	t.Run("日志按时间倒序返回", func(t *testing.T) {
		data, err := svc.GetUserProgressData(testUserID, content.ID)
		require.NoError(t, err)
		require.Len(t, data.Log, 3)
		for i := 1; i < len(data.Log); i++ {
			assert.False(t, data.Log[i].Timestamp.After(data.Log[i-1].Timestamp))
		}
	})

	t.Run("乱序补录不改变间隔", func(t *testing.T) {
		// 当前最新为失败（interval 缺失），补一条更早的成功记录
		data := appendLog(t, svc, content.ID, true, daysAgo(10))
		assert.Nil(t, data.LearningInterval)
		assert.Len(t, data.Log, 4)
	})
}

func TestProgressService_GetUserProgressData(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newProgressService(db)
	content := createContent(t, db, chapter, "quiz")

	t.Run("内容不存在返回未找到", func(t *testing.T) {
		_, err := svc.GetUserProgressData(testUserID, 9999)
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("无进度记录返回零值状态", func(t *testing.T) {
		resp, err := svc.GetUserProgressData(testUserID, content.ID)
		require.NoError(t, err)
		assert.False(t, resp.IsLearned)
		assert.False(t, resp.IsDueForReview)
		assert.Empty(t, resp.Log)
	})

	t.Run("学会后返回复习日期", func(t *testing.T) {
		appendLog(t, svc, content.ID, true, daysAgo(5))

		resp, err := svc.GetUserProgressData(testUserID, content.ID)
		require.NoError(t, err)
		assert.True(t, resp.IsLearned)
		require.NotNil(t, resp.NextLearnDate)
		// 间隔1天、5天前学会，复习早已到期
		assert.True(t, resp.IsDueForReview)
	})
}

func TestProgressService_StageProgressFor(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newProgressService(db)

	t.Run("Stage不存在返回未找到", func(t *testing.T) {
		_, err := svc.StageProgressFor(9999, testUserID)
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("空集合视为全部完成", func(t *testing.T) {
		stage := &model.Stage{SectionID: section.ID, Position: 0}
		require.NoError(t, db.Create(stage).Error)

		progress, err := svc.StageProgressFor(stage.ID, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, progress.Required)
		assert.Equal(t, 1.0, progress.Optional)
	})

	t.Run("按学会数量计算比例", func(t *testing.T) {
		c1 := createContent(t, db, chapter, "r1")
		c2 := createContent(t, db, chapter, "r2")
		c3 := createContent(t, db, chapter, "o1")

		stage := &model.Stage{SectionID: section.ID, Position: 1}
		require.NoError(t, db.Create(stage).Error)
		links := []model.StageContent{
			{StageID: stage.ID, ContentID: c1.ID, Required: true},
			{StageID: stage.ID, ContentID: c2.ID, Required: true},
			{StageID: stage.ID, ContentID: c3.ID, Required: false},
		}
		require.NoError(t, db.Create(&links).Error)

		appendLog(t, svc, c1.ID, true, daysAgo(1))

		progress, err := svc.StageProgressFor(stage.ID, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 0.5, progress.Required)
		assert.Equal(t, 0.0, progress.Optional)

		// 最近一次失败的内容不计入完成
		appendLog(t, svc, c2.ID, true, daysAgo(2))
		appendLog(t, svc, c2.ID, false, daysAgo(1))

		progress, err = svc.StageProgressFor(stage.ID, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 0.5, progress.Required)
	})
}

func TestProgressService_IsAvailable(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newProgressService(db)

	c1 := createContent(t, db, chapter, "gate-required")
	c2 := createContent(t, db, chapter, "gate-optional")

	first := &model.Stage{SectionID: section.ID, Position: 0}
	second := &model.Stage{SectionID: section.ID, Position: 1}
	third := &model.Stage{SectionID: section.ID, Position: 2}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(second).Error)
	require.NoError(t, db.Create(third).Error)
	gateLinks := []model.StageContent{
		{StageID: first.ID, ContentID: c1.ID, Required: true},
		{StageID: first.ID, ContentID: c2.ID, Required: false},
	}
	require.NoError(t, db.Create(&gateLinks).Error)

	t.Run("Stage不存在返回未找到", func(t *testing.T) {
		_, err := svc.IsAvailable(9999, testUserID)
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("位置0永远可学", func(t *testing.T) {
		available, err := svc.IsAvailable(first.ID, testUserID)
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("前驱必修未完成时封锁", func(t *testing.T) {
		available, err := svc.IsAvailable(second.ID, testUserID)
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("前驱必修完成后解锁，选修不参与门控", func(t *testing.T) {
		appendLog(t, svc, c1.ID, true, daysAgo(1))

		available, err := svc.IsAvailable(second.ID, testUserID)
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("空前驱的后继可学", func(t *testing.T) {
		// second 没有任何内容，空集合视为完成
		available, err := svc.IsAvailable(third.ID, testUserID)
		require.NoError(t, err)
		assert.True(t, available)
	})
}
