package stats

import (
	"context"
	"math"
	"sync/atomic"
)

// Atomic 是进程内的无锁统计实现。
// 计数使用 atomic.Uint64，分数和以 float64 位模式存放并通过 CAS 累加。
type Atomic struct {
	total   atomic.Uint64
	flagged atomic.Uint64
	sumBits atomic.Uint64
}

func NewAtomic() *Atomic {
	return &Atomic{}
}

func (a *Atomic) Record(ctx context.Context, flagged bool, score float64) {
	a.total.Add(1)
	if flagged {
		a.flagged.Add(1)
	}
	for {
		old := a.sumBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + score)
		if a.sumBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Snapshot 读取当前统计。三个计数分别读取，并发写入时快照可能跨越一次 Record。
func (a *Atomic) Snapshot(ctx context.Context) (Snapshot, error) {
	return NewSnapshot(a.total.Load(), a.flagged.Load(), math.Float64frombits(a.sumBits.Load())), nil
}

func (a *Atomic) Reset(ctx context.Context) error {
	a.total.Store(0)
	a.flagged.Store(0)
	a.sumBits.Store(0)
	return nil
}

var _ Sink = (*Atomic)(nil)
