package composer

import (
	"context"
	"fmt"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// BatchSequences packs finished clips into groups whose total runtime
// stays at or under maxDuration, preserving order. A clip longer than
// the limit on its own is skipped with a warning, never truncated.
func BatchSequences(seqs []*Sequence, maxDuration time.Duration) [][]*Sequence {
	if maxDuration <= 0 {
		if len(seqs) == 0 {
			return nil
		}
		return [][]*Sequence{seqs}
	}

	var batches [][]*Sequence
	var current []*Sequence
	var currentDur time.Duration

	for _, seq := range seqs {
		if seq.Duration > maxDuration {
			log.Warn("clip %s (%s) exceeds the batch limit %s, skipping", seq.OutputPath, seq.Duration, maxDuration)
			continue
		}
		if currentDur+seq.Duration > maxDuration && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentDur = 0
		}
		current = append(current, seq)
		currentDur += seq.Duration
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// WriteBatch concatenates one batch's clips into a single output file
func (c *Composer) WriteBatch(ctx context.Context, batch []*Sequence, output string) error {
	if len(batch) == 0 {
		return fmt.Errorf("empty batch")
	}
	inputs := make([]string, len(batch))
	for i, seq := range batch {
		inputs[i] = seq.OutputPath
	}
	if err := c.enc.Concat(ctx, inputs, output); err != nil {
		return fmt.Errorf("batch concat failed: %w", err)
	}
	return nil
}
