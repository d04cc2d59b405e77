// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"sync"
)

const (
	// DefaultBudgetMB is the budget used when a non-positive size is given.
	DefaultBudgetMB = 256

	// MinBudgetMB is the smallest accepted budget.
	MinBudgetMB = 16
)

// BudgetStats is a snapshot of budget usage.
type BudgetStats struct {
	TotalBytes     uint64
	UsedBytes      uint64
	PeakBytes      uint64
	AvailableBytes uint64
	Allocations    int
	Rejections     uint64
	Utilization    float64
}

// String returns a compact summary.
func (s BudgetStats) String() string {
	return fmt.Sprintf("Budget[%.1f%% used, %d/%d MB, %d textures, %d rejected]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.Allocations,
		s.Rejections)
}

// Budget accounts texture memory. A nil *Budget accepts everything.
type Budget struct {
	mu sync.Mutex

	total      uint64
	used       uint64
	peak       uint64
	count      int
	rejections uint64
}

// NewBudget returns a budget of the given size in megabytes. Sizes below
// MinBudgetMB are raised to it; non-positive sizes select DefaultBudgetMB.
func NewBudget(megabytes int) *Budget {
	switch {
	case megabytes <= 0:
		megabytes = DefaultBudgetMB
	case megabytes < MinBudgetMB:
		megabytes = MinBudgetMB
	}
	return &Budget{total: uint64(megabytes) * 1024 * 1024}
}

// NewBudgetBytes returns a budget of exactly n bytes.
func NewBudgetBytes(n uint64) *Budget {
	return &Budget{total: n}
}

// Reserve accounts n bytes or fails with ErrResourceExhausted.
func (b *Budget) Reserve(n uint64) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used+n > b.total {
		b.rejections++
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrResourceExhausted, n, b.used, b.total)
	}
	b.used += n
	b.count++
	b.peak = max(b.peak, b.used)
	return nil
}

// Free returns n bytes to the budget.
func (b *Budget) Free(n uint64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.used {
		n = b.used
	}
	b.used -= n
	if b.count > 0 {
		b.count--
	}
}

// Stats returns a snapshot.
func (b *Budget) Stats() BudgetStats {
	if b == nil {
		return BudgetStats{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var util float64
	if b.total > 0 {
		util = float64(b.used) / float64(b.total)
	}
	return BudgetStats{
		TotalBytes:     b.total,
		UsedBytes:      b.used,
		PeakBytes:      b.peak,
		AvailableBytes: b.total - b.used,
		Allocations:    b.count,
		Rejections:     b.rejections,
		Utilization:    util,
	}
}
