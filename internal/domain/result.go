package domain

import (
	"encoding/json"
	"math"
	"time"
)

// BlockFailure pairs a block with the error message that stopped it.
type BlockFailure struct {
	Block string `json:"block"`
	Error string `json:"error"`
}

// BulkGenerationResult summarizes one bulk generation run. It is immutable:
// all fields are set at construction and exposed through accessors.
type BulkGenerationResult struct {
	totalBlocks  int
	successCount int
	failedBlocks []BlockFailure
	totalTokens  int
	totalCost    float64
	totalTime    time.Duration
}

// NewBulkGenerationResult builds a result for a run that visited totalBlocks blocks.
// The success count is derived so that successes plus failures always equal the total.
func NewBulkGenerationResult(
	totalBlocks int,
	failed []BlockFailure,
	totalTokens int,
	totalCost float64,
	totalTime time.Duration,
) BulkGenerationResult {
	copied := make([]BlockFailure, len(failed))
	copy(copied, failed)

	success := totalBlocks - len(copied)
	if success < 0 {
		success = 0
	}

	return BulkGenerationResult{
		totalBlocks:  totalBlocks,
		successCount: success,
		failedBlocks: copied,
		totalTokens:  totalTokens,
		totalCost:    totalCost,
		totalTime:    totalTime,
	}
}

// TotalBlocks returns the number of blocks the run attempted.
func (r BulkGenerationResult) TotalBlocks() int { return r.totalBlocks }

// SuccessCount returns the number of blocks generated successfully.
func (r BulkGenerationResult) SuccessCount() int { return r.successCount }

// FailedBlocks returns a copy of the per-block failures in visiting order.
func (r BulkGenerationResult) FailedBlocks() []BlockFailure {
	out := make([]BlockFailure, len(r.failedBlocks))
	copy(out, r.failedBlocks)
	return out
}

// TotalTokens returns the tokens consumed by successful blocks.
func (r BulkGenerationResult) TotalTokens() int { return r.totalTokens }

// TotalCost returns the cost of successful blocks.
func (r BulkGenerationResult) TotalCost() float64 { return r.totalCost }

// TotalTime returns the wall-clock duration of the run.
func (r BulkGenerationResult) TotalTime() time.Duration { return r.totalTime }

// SuccessRate returns 100 * successes / total, rounded to two decimals. Zero blocks yields 0.
func (r BulkGenerationResult) SuccessRate() float64 {
	if r.totalBlocks == 0 {
		return 0
	}
	rate := 100 * float64(r.successCount) / float64(r.totalBlocks)
	return math.Round(rate*100) / 100
}

// FullySucceeded reports whether every attempted block succeeded.
func (r BulkGenerationResult) FullySucceeded() bool {
	return r.totalBlocks > 0 && len(r.failedBlocks) == 0
}

// MarshalJSON renders the result with its derived fields.
func (r BulkGenerationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TotalBlocks  int            `json:"total_blocks"`
		SuccessCount int            `json:"success_count"`
		FailedBlocks []BlockFailure `json:"failed_blocks"`
		TotalTokens  int            `json:"total_tokens"`
		TotalCost    float64        `json:"total_cost"`
		TotalTimeMS  int64          `json:"total_time_ms"`
		SuccessRate  float64        `json:"success_rate"`
	}{
		TotalBlocks:  r.totalBlocks,
		SuccessCount: r.successCount,
		FailedBlocks: r.FailedBlocks(),
		TotalTokens:  r.totalTokens,
		TotalCost:    r.totalCost,
		TotalTimeMS:  r.totalTime.Milliseconds(),
		SuccessRate:  r.SuccessRate(),
	})
}
