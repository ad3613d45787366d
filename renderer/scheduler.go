package renderer

import (
	"math"
	"time"
)

// The blockScheduler interface is implemented by all block scheduling
// algorithms. Schedulers split the frame into horizontal blocks of variable
// height, one per render worker.
type blockScheduler interface {
	// Split frame into blocks of variable height using feedback collected
	// from previous render passes. lastPassTime holds the block render
	// time for each worker during the previous pass; it is ignored for
	// the first pass.
	//
	// This function returns the block height assignment for each worker.
	Schedule(numWorkers int, frameH uint32, lastPassTime []time.Duration) []uint32
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent passes is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// Create a new perfect scheduler instance
func newPerfectScheduler() blockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool of
// workers using feedback collected from previous passes.
//
// When previous pass information is available the scheduler estimates the
// throughput of worker w as blockH_w / time_w and hands out row counts
// proportional to it.
func (sch *perfectScheduler) Schedule(numWorkers int, frameH uint32, lastPassTime []time.Duration) []uint32 {
	// If this is the first time we try to schedule or the number of
	// workers has changed reset to an equal split.
	if len(sch.blockAssignment) != numWorkers {
		sch.blockAssignment = make([]uint32, numWorkers)

		rows := frameH / uint32(numWorkers)
		for idx := range sch.blockAssignment {
			sch.blockAssignment[idx] = rows
		}
		sch.blockAssignment[0] += frameH - rows*uint32(numWorkers)
		return sch.blockAssignment
	}

	// Use last pass statistics
	var total float64
	for idx := range sch.blockAssignment {
		if lastPassTime[idx] <= 0 {
			// No usable feedback; keep the current assignment.
			return sch.blockAssignment
		}
		total += float64(sch.blockAssignment[idx]) / float64(lastPassTime[idx])
	}

	scaler := float64(frameH) / total
	var scheduledRows uint32
	for idx := range sch.blockAssignment {
		throughput := float64(sch.blockAssignment[idx]) / float64(lastPassTime[idx])
		sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(throughput*scaler)))
		scheduledRows += sch.blockAssignment[idx]
	}

	// In case rows don't add up to the frame height append the missing
	// ones to the first worker. Rounding up tiny assignments can also
	// overshoot; fall back to an equal split when that happens.
	if scheduledRows > frameH {
		sch.blockAssignment = nil
		return sch.Schedule(numWorkers, frameH, lastPassTime)
	}
	sch.blockAssignment[0] += frameH - scheduledRows

	return sch.blockAssignment
}
