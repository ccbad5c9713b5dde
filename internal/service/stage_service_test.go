package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func stagePositions(t *testing.T, db *gorm.DB, sectionID uint) map[uint]int {
	t.Helper()
	var rows []orderedRow
	err := db.Model(&model.Stage{}).
		Select("id", "position").
		Where("section_id = ?", sectionID).
		Scan(&rows).Error
	require.NoError(t, err)
	result := make(map[uint]int, len(rows))
	for _, row := range rows {
		result[row.ID] = row.Position
	}
	return result
}

func TestStageService_CreateStage(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newStageService(db)

	c1 := createContent(t, db, chapter, "video")
	c2 := createContent(t, db, chapter, "quiz")

	t.Run("小节不存在返回未找到", func(t *testing.T) {
		_, err := svc.CreateStage(9999, StageContentSetsRequest{})
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("必修集合内重复拒绝", func(t *testing.T) {
		_, err := svc.CreateStage(section.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{c1.ID, c1.ID},
		})
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("必修与选修重叠拒绝", func(t *testing.T) {
		_, err := svc.CreateStage(section.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{c1.ID},
			OptionalContentIDs: []uint{c1.ID},
		})
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("引用不存在的内容拒绝", func(t *testing.T) {
		_, err := svc.CreateStage(section.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{c1.ID, 9999},
		})
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("创建成功并按集合落库", func(t *testing.T) {
		stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{c1.ID},
			OptionalContentIDs: []uint{c2.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, stage.Position)
		require.Len(t, stage.Contents, 2)

		byContent := make(map[uint]bool, 2)
		for _, sc := range stage.Contents {
			byContent[sc.ContentID] = sc.Required
		}
		assert.True(t, byContent[c1.ID])
		assert.False(t, byContent[c2.ID])
	})

	t.Run("空集合的Stage合法", func(t *testing.T) {
		stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, stage.Position)
		assert.Empty(t, stage.Contents)
	})
}

func TestStageService_UpdateStage(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newStageService(db)

	c1 := createContent(t, db, chapter, "a")
	c2 := createContent(t, db, chapter, "b")

	stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{
		RequiredContentIDs: []uint{c1.ID},
	})
	require.NoError(t, err)

	t.Run("整体替换内容集合", func(t *testing.T) {
		updated, err := svc.UpdateStage(stage.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{c2.ID},
			OptionalContentIDs: []uint{c1.ID},
		})
		require.NoError(t, err)
		require.Len(t, updated.Contents, 2)

		byContent := make(map[uint]bool, 2)
		for _, sc := range updated.Contents {
			byContent[sc.ContentID] = sc.Required
		}
		assert.True(t, byContent[c2.ID])
		assert.False(t, byContent[c1.ID])
	})

	t.Run("替换为空集合", func(t *testing.T) {
		updated, err := svc.UpdateStage(stage.ID, StageContentSetsRequest{})
		require.NoError(t, err)
		assert.Empty(t, updated.Contents)
	})

	t.Run("校验失败保留原集合", func(t *testing.T) {
		_, err := svc.UpdateStage(stage.ID, StageContentSetsRequest{
			RequiredContentIDs: []uint{9999},
		})
		assert.True(t, errors.Is(err, util.ErrNotFound))

		var count int64
		require.NoError(t, db.Model(&model.StageContent{}).Where("stage_id = ?", stage.ID).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestStageService_DeleteAndMove(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newStageService(db)

	var stages []*model.Stage
	for i := 0; i < 4; i++ {
		stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{})
		require.NoError(t, err)
		assert.Equal(t, i, stage.Position)
		stages = append(stages, stage)
	}

	t.Run("删除中间Stage后位置连续", func(t *testing.T) {
		require.NoError(t, svc.DeleteStage(stages[1].ID))

		positions := stagePositions(t, db, section.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[stages[0].ID])
		assert.Equal(t, 1, positions[stages[2].ID])
		assert.Equal(t, 2, positions[stages[3].ID])
	})

	t.Run("移动到越界位置自动截断", func(t *testing.T) {
		moved, err := svc.MoveStage(stages[0].ID, 99)
		require.NoError(t, err)
		assert.Equal(t, 2, moved.Position)

		positions := stagePositions(t, db, section.ID)
		assertContiguous(t, positions)
	})

	t.Run("负位置截断为0", func(t *testing.T) {
		moved, err := svc.MoveStage(stages[0].ID, -5)
		require.NoError(t, err)
		assert.Equal(t, 0, moved.Position)

		positions := stagePositions(t, db, section.ID)
		assertContiguous(t, positions)
	})
}

// 等锁期间完成的合法变更不得让后续的移动/删除在过期位置上计算：
// 位置必须在持锁后的事务内重读。
func TestStageService_PositionReadAfterLock(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newStageService(db)

	var stages []*model.Stage
	for i := 0; i < 3; i++ {
		stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{})
		require.NoError(t, err)
		stages = append(stages, stage)
	}
	a, b, c := stages[0], stages[1], stages[2]

	setPositions := func(t *testing.T, byID map[uint]int) {
		t.Helper()
		for id, pos := range byID {
			require.NoError(t, db.Exec("UPDATE stages SET position = ? WHERE id = ?", pos, id).Error)
		}
	}

	t.Run("移动按当前位置计算", func(t *testing.T) {
		lock := svc.locks.lock(fmt.Sprintf("section:%d", section.ID))

		done := make(chan error, 1)
		go func() {
			_, err := svc.MoveStage(b.ID, 0)
			done <- err
		}()

		// 让移动协程完成锁外读取并阻塞在锁上
		time.Sleep(50 * time.Millisecond)

		// 模拟一次已提交的合法移动：c 从 2 移到 0，b 落到 2
		setPositions(t, map[uint]int{c.ID: 0, a.ID: 1, b.ID: 2})
		lock.Unlock()
		require.NoError(t, <-done)

		positions := stagePositions(t, db, section.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[b.ID])
	})

	t.Run("删除按当前位置回填", func(t *testing.T) {
		// 上一步之后顺序为 b(0) c(1) a(2)
		lock := svc.locks.lock(fmt.Sprintf("section:%d", section.ID))

		done := make(chan error, 1)
		go func() {
			done <- svc.DeleteStage(b.ID)
		}()

		time.Sleep(50 * time.Millisecond)

		// 等锁期间 a 被移到开头，b 落到 1
		setPositions(t, map[uint]int{a.ID: 0, b.ID: 1, c.ID: 2})
		lock.Unlock()
		require.NoError(t, <-done)

		positions := stagePositions(t, db, section.ID)
		require.Len(t, positions, 2)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[a.ID])
		assert.Equal(t, 1, positions[c.ID])
	})
}

func TestStageService_ReorderStages(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	section := createSection(t, db, chapter, "s", 0)
	svc := newStageService(db)

	var ids []uint
	for i := 0; i < 3; i++ {
		stage, err := svc.CreateStage(section.ID, StageContentSetsRequest{})
		require.NoError(t, err)
		ids = append(ids, stage.ID)
	}

	t.Run("小节不存在返回未找到", func(t *testing.T) {
		_, err := svc.ReorderStages(9999, ids)
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("非置换输入拒绝", func(t *testing.T) {
		_, err := svc.ReorderStages(section.ID, ids[:2])
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("重排后按新顺序返回", func(t *testing.T) {
		reordered, err := svc.ReorderStages(section.ID, []uint{ids[2], ids[0], ids[1]})
		require.NoError(t, err)
		require.Len(t, reordered, 3)
		assert.Equal(t, ids[2], reordered[0].ID)
		assert.Equal(t, ids[0], reordered[1].ID)
		assert.Equal(t, ids[1], reordered[2].ID)

		positions := stagePositions(t, db, section.ID)
		assertContiguous(t, positions)
	})
}
