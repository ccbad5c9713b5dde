package service

import (
	"errors"
	"testing"

	"learnpath_backend/internal/model"
	"learnpath_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sectionPositions(t *testing.T, db *gorm.DB, chapterID uint) map[uint]int {
	t.Helper()
	var rows []orderedRow
	err := db.Model(&model.Section{}).
		Select("id", "position").
		Where("chapter_id = ?", chapterID).
		Scan(&rows).Error
	require.NoError(t, err)
	result := make(map[uint]int, len(rows))
	for _, row := range rows {
		result[row.ID] = row.Position
	}
	return result
}

// assertContiguous 校验某父级下的位置恰好为 0..n-1
func assertContiguous(t *testing.T, positions map[uint]int) {
	t.Helper()
	seen := make(map[int]bool, len(positions))
	for id, pos := range positions {
		assert.GreaterOrEqual(t, pos, 0, "id %d has negative position", id)
		assert.Less(t, pos, len(positions), "id %d position out of range", id)
		assert.False(t, seen[pos], "position %d occupied twice", pos)
		seen[pos] = true
	}
}

func TestListOrderer_AppendRemoveMove(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	orderer := listOrderer{model: &model.Section{}, parentCol: "chapter_id"}

	var sections []*model.Section
	for i, name := range []string{"a", "b", "c", "d"} {
		pos, err := orderer.nextPosition(db, chapter.ID)
		require.NoError(t, err)
		assert.Equal(t, i, pos)
		sections = append(sections, createSection(t, db, chapter, name, pos))
	}

	t.Run("删除中间项后兄弟前移", func(t *testing.T) {
		removed := sections[1]
		require.NoError(t, db.Delete(&model.Section{}, removed.ID).Error)
		require.NoError(t, orderer.removeAndRepack(db, chapter.ID, removed.Position))

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[sections[0].ID])
		assert.Equal(t, 1, positions[sections[2].ID])
		assert.Equal(t, 2, positions[sections[3].ID])
	})

	t.Run("后移时区间内兄弟前进", func(t *testing.T) {
		// 当前顺序 a(0) c(1) d(2)，把 a 移到末尾
		require.NoError(t, orderer.moveTo(db, chapter.ID, sections[0].ID, 0, 2))

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 2, positions[sections[0].ID])
		assert.Equal(t, 0, positions[sections[2].ID])
		assert.Equal(t, 1, positions[sections[3].ID])
	})

	t.Run("前移时区间内兄弟后退", func(t *testing.T) {
		// 当前顺序 c(0) d(1) a(2)，把 a 移回开头
		require.NoError(t, orderer.moveTo(db, chapter.ID, sections[0].ID, 2, 0))

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[sections[0].ID])
		assert.Equal(t, 1, positions[sections[2].ID])
		assert.Equal(t, 2, positions[sections[3].ID])
	})
}

// 守卫失配先以新快照重试一次，仍然失配则放弃并返回冲突
func TestReorder_ConcurrentPositionConflict(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	svc := newSectionService(db)

	a := createSection(t, db, chapter, "a", 0)
	b := createSection(t, db, chapter, "b", 1)
	c := createSection(t, db, chapter, "c", 2)

	// 每次写回前把目标行的位置改掉，模拟另一会话抢在守卫前提交
	perturbed := 0
	err := db.Callback().Update().Before("gorm:update").Register("shift_position_underneath", func(d *gorm.DB) {
		if d.Statement.Table != "sections" || perturbed >= 2 {
			return
		}
		perturbed++
		d.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE sections SET position = position + 10 WHERE id = ?", c.ID)
	})
	require.NoError(t, err)

	_, err = svc.ReorderSections(chapter.ID, []uint{c.ID, a.ID, b.ID})
	assert.True(t, errors.Is(err, util.ErrConflict))
	assert.Equal(t, 2, perturbed)

	// 两次尝试都整体回滚，原顺序不变
	positions := sectionPositions(t, db, chapter.ID)
	assert.Equal(t, 0, positions[a.ID])
	assert.Equal(t, 1, positions[b.ID])
	assert.Equal(t, 2, positions[c.ID])
}

func TestClampPosition(t *testing.T) {
	assert.Equal(t, 0, clampPosition(-3, 5))
	assert.Equal(t, 0, clampPosition(0, 5))
	assert.Equal(t, 3, clampPosition(3, 5))
	assert.Equal(t, 4, clampPosition(99, 5))
}

func TestListOrderer_Reorder(t *testing.T) {
	db := setupTestDB(t)
	_, chapter := createCourseChapter(t, db)
	orderer := listOrderer{model: &model.Section{}, parentCol: "chapter_id"}

	a := createSection(t, db, chapter, "a", 0)
	b := createSection(t, db, chapter, "b", 1)
	c := createSection(t, db, chapter, "c", 2)

	t.Run("长度不符拒绝", func(t *testing.T) {
		err := orderer.reorder(db, chapter.ID, []uint{a.ID, b.ID})
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("含外部id拒绝", func(t *testing.T) {
		err := orderer.reorder(db, chapter.ID, []uint{a.ID, b.ID, 9999})
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("重复id拒绝", func(t *testing.T) {
		err := orderer.reorder(db, chapter.ID, []uint{a.ID, b.ID, b.ID})
		assert.True(t, errors.Is(err, util.ErrValidation))
	})

	t.Run("校验失败不产生变更", func(t *testing.T) {
		positions := sectionPositions(t, db, chapter.ID)
		assert.Equal(t, 0, positions[a.ID])
		assert.Equal(t, 1, positions[b.ID])
		assert.Equal(t, 2, positions[c.ID])
	})

	t.Run("合法置换按输入顺序落位", func(t *testing.T) {
		require.NoError(t, orderer.reorder(db, chapter.ID, []uint{c.ID, a.ID, b.ID}))

		positions := sectionPositions(t, db, chapter.ID)
		assertContiguous(t, positions)
		assert.Equal(t, 0, positions[c.ID])
		assert.Equal(t, 1, positions[a.ID])
		assert.Equal(t, 2, positions[b.ID])
	})

	t.Run("恒等置换是空操作", func(t *testing.T) {
		require.NoError(t, orderer.reorder(db, chapter.ID, []uint{c.ID, a.ID, b.ID}))

		positions := sectionPositions(t, db, chapter.ID)
		assert.Equal(t, 0, positions[c.ID])
	})
}
