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
)

func TestSectionService_CreateSection(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)

	t.Run("章节不存在返回未找到", func(t *testing.T) {
		_, err := svc.CreateSection(9999, SectionCreateRequest{Name: "x"})
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("新小节追加到末尾", func(t *testing.T) {
		first, err := svc.CreateSection(chapter.ID, SectionCreateRequest{Name: "Grammar"})
		require.NoError(t, err)
		assert.Equal(t, 0, first.Position)
		assert.Equal(t, chapter.CourseID, first.CourseID)

		second, err := svc.CreateSection(chapter.ID, SectionCreateRequest{Name: "Vocabulary"})
		require.NoError(t, err)
		assert.Equal(t, 1, second.Position)
	})
}

func TestSectionService_UpdateSectionName(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)
	section := createSection(t, db, chapter, "old", 0)

	t.Run("空名称拒绝", func(t *testing.T) {
		_, err := svc.UpdateSectionName(section.ID, "")
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("不存在的小节返回未找到", func(t *testing.T) {
		_, err := svc.UpdateSectionName(9999, "new")
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("改名不影响位置", func(t *testing.T) {
		updated, err := svc.UpdateSectionName(section.ID, "new")
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Name)

		var stored model.Section
		require.NoError(t, db.First(&stored, section.ID).Error)
		assert.Equal(t, "new", stored.Name)
		assert.Equal(t, 0, stored.Position)
	})
}

func TestSectionService_DeleteSection(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)

	a := createSection(t, db, chapter, "a", 0)
	b := createSection(t, db, chapter, "b", 1)
	c := createSection(t, db, chapter, "c", 2)

	// b 下挂两个 Stage，其中一个引用内容
	content := createContent(t, db, chapter, "quiz")
	stage1 := &model.Stage{SectionID: b.ID, Position: 0}
	stage2 := &model.Stage{SectionID: b.ID, Position: 1}
	require.NoError(t, db.Create(stage1).Error)
	require.NoError(t, db.Create(stage2).Error)
	require.NoError(t, db.Create(&model.StageContent{
		StageID: stage1.ID, ContentID: content.ID, Required: true,
	}).Error)

	t.Run("不存在的小节返回未找到", func(t *testing.T) {
		err := svc.DeleteSection(9999)
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("级联删除并回填位置", func(t *testing.T) {
		require.NoError(t, svc.DeleteSection(b.ID))

		var stageCount int64
		require.NoError(t, db.Model(&model.Stage{}).Where("section_id = ?", b.ID).Count(&stageCount).Error)
		assert.Zero(t, stageCount)

		var linkCount int64
		require.NoError(t, db.Model(&model.StageContent{}).Where("stage_id = ?", stage1.ID).Count(&linkCount).Error)
		assert.Zero(t, linkCount)

		// 内容本身不受影响
		var contentCount int64
		require.NoError(t, db.Model(&model.Content{}).Where("id = ?", content.ID).Count(&contentCount).Error)
		assert.EqualValues(t, 1, contentCount)

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[a.ID])
		assert.Equal(t, 1, positions[c.ID])
	})
}

// 等锁期间完成的合法变更不得让删除在过期位置上回填
func TestSectionService_DeletePositionReadAfterLock(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)

	a := createSection(t, db, chapter, "a", 0)
	b := createSection(t, db, chapter, "b", 1)
	c := createSection(t, db, chapter, "c", 2)

	lock := svc.locks.lock(fmt.Sprintf("chapter:%d", chapter.ID))

	done := make(chan error, 1)
	go func() {
		done <- svc.DeleteSection(b.ID)
	}()

	// 让删除协程完成锁外读取并阻塞在锁上
	time.Sleep(50 * time.Millisecond)

	// 模拟一次已提交的合法移动：c 从 2 移到 0，b 落到 2
	for id, pos := range map[uint]int{c.ID: 0, a.ID: 1, b.ID: 2} {
		require.NoError(t, db.Exec("UPDATE sections SET position = ? WHERE id = ?", pos, id).Error)
	}
	lock.Unlock()
	require.NoError(t, <-done)

	positions := sectionPositions(t, db, chapter.ID)
	require.Len(t, positions, 2)
	assertContiguous(t, positions)
	assert.Equal(t, 0, positions[c.ID])
	assert.Equal(t, 1, positions[a.ID])
}

func TestSectionService_ReorderSections(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)

	a := createSection(t, db, chapter, "a", 0)
	b := createSection(t, db, chapter, "b", 1)
	c := createSection(t, db, chapter, "c", 2)

	t.Run("章节不存在返回未找到", func(t *testing.T) {
		_, err := svc.ReorderSections(9999, []uint{a.ID, b.ID, c.ID})
		assert.True(t, errors.Is(err, util.ErrNotFound))
	})

	t.Run("非法置换拒绝且无变更", func(t *testing.T) {
		_, err := svc.ReorderSections(chapter.ID, []uint{a.ID, a.ID, b.ID})
		assert.True(t, errors.Is(err, util.ErrValidation))

		positions := sectionPositions(t, db, chapter.ID)
		assert.Equal(t, 0, positions[a.ID])
		assert.Equal(t, 1, positions[b.ID])
		assert.Equal(t, 2, positions[c.ID])
	})

	t.Run("重排后按新顺序返回", func(t *testing.T) {
		sections, err := svc.ReorderSections(chapter.ID, []uint{c.ID, b.ID, a.ID})
		require.NoError(t, err)
		require.Len(t, sections, 3)
		assert.Equal(t, c.ID, sections[0].ID)
		assert.Equal(t, b.ID, sections[1].ID)
		assert.Equal(t, a.ID, sections[2].ID)

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
	})
}
