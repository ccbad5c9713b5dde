package service

import (
	"fmt"
	"sync"

	"learnpath_backend/internal/util"

	"gorm.io/gorm"
)

// listOrderer 维护某父级下子项 position 的连续性不变量：
// 任何插入/删除/移动操作返回前，position 必须恰好是 0..n-1。
// model 是携带 position 列的gorm模型指针，parentCol 是父级外键列名。
type listOrderer struct {
	model     interface{}
	parentCol string
}

// nextPosition 追加语义：新子项的位置等于当前子项数
func (o listOrderer) nextPosition(tx *gorm.DB, parentID uint) (int, error) {
	var count int64
	err := tx.Model(o.model).Where(o.parentCol+" = ?", parentID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// removeAndRepack 子项删除后调用：removedPos 之后的兄弟整体前移一位
func (o listOrderer) removeAndRepack(tx *gorm.DB, parentID uint, removedPos int) error {
	return tx.Model(o.model).
		Where(o.parentCol+" = ? AND position > ?", parentID, removedPos).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

// moveTo 把 id 从 oldPos 移到 newPos（调用前已按 [0, count-1] 收敛）。
// 前移时区间内兄弟后退一位，后移时区间内兄弟前进一位。
func (o listOrderer) moveTo(tx *gorm.DB, parentID, id uint, oldPos, newPos int) error {
	if oldPos == newPos {
		return nil
	}

	if newPos > oldPos {
		err := tx.Model(o.model).
			Where(o.parentCol+" = ? AND position > ? AND position <= ?", parentID, oldPos, newPos).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
		if err != nil {
			return err
		}
	} else {
		err := tx.Model(o.model).
			Where(o.parentCol+" = ? AND position >= ? AND position < ?", parentID, newPos, oldPos).
			UpdateColumn("position", gorm.Expr("position + 1")).Error
		if err != nil {
			return err
		}
	}

	return tx.Model(o.model).Where("id = ?", id).UpdateColumn("position", newPos).Error
}

// clamp 把目标位置收敛到 [0, count-1]
func clampPosition(pos, count int) int {
	if pos < 0 {
		return 0
	}
	if pos > count-1 {
		return count - 1
	}
	return pos
}

// orderedRow reorder 校验与回写共用的最小投影
type orderedRow struct {
	ID       uint
	Position int
}

// errOrderingConflict 乐观位置校验失败，说明读到的快照已被并发修改
var errOrderingConflict = fmt.Errorf("ordering snapshot is stale")

// reorder 全量重排：校验 orderedIDs 恰好是当前成员的一个置换后，
// 单趟把每个 id 的 position 写为其在输入中的下标。任何一步失败都在
// 事务内回滚，不产生部分变更。位置回写带旧值守卫，守卫失配意味着
// 并发修改，由调用方决定是否重试。
func (o listOrderer) reorder(tx *gorm.DB, parentID uint, orderedIDs []uint) error {
	var current []orderedRow
	err := tx.Model(o.model).
		Select("id", "position").
		Where(o.parentCol+" = ?", parentID).
		Order("position asc").
		Scan(&current).Error
	if err != nil {
		return err
	}

	if len(orderedIDs) != len(current) {
		return fmt.Errorf("%w: reorder payload has %d ids, parent has %d members",
			util.ErrValidation, len(orderedIDs), len(current))
	}

	positionByID := make(map[uint]int, len(current))
	for _, row := range current {
		positionByID[row.ID] = row.Position
	}

	seen := make(map[uint]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := positionByID[id]; !ok {
			return fmt.Errorf("%w: id %d does not belong to this parent", util.ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %d in reorder payload", util.ErrValidation, id)
		}
		seen[id] = true
	}

	for newPos, id := range orderedIDs {
		oldPos := positionByID[id]
		if oldPos == newPos {
			continue
		}
		res := tx.Model(o.model).
			Where("id = ? AND position = ?", id, oldPos).
			UpdateColumn("position", newPos)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errOrderingConflict
		}
	}

	return nil
}

// parentLocks 同一父级的重排请求在进程内互斥，不同父级互不阻塞
type parentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newParentLocks() *parentLocks {
	return &parentLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *parentLocks) lock(key string) *sync.Mutex {
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	p.mu.Unlock()
	m.Lock()
	return m
}
