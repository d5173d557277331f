// Package mediatest provides an instrumented in-memory stand-in for the
// external encoder, used to test composition and concurrency behavior
// without spawning subprocesses.
package mediatest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
)

// Call records one encoder invocation
type Call struct {
	Op     string
	Output string
}

// FakeEncoder implements media.Encoder by writing marker files and
// tracking per-output durations, so Probe answers consistently with the
// operations that produced each file. It also counts concurrently running
// invocations for ceiling assertions.
type FakeEncoder struct {
	// Delay stretches every invocation so concurrency is observable
	Delay time.Duration
	// FailOn, when set, lets a test fail selected invocations
	FailOn func(op, output string) error

	running int64
	peak    int64

	mu        sync.Mutex
	durations map[string]time.Duration
	calls     []Call
}

func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{durations: make(map[string]time.Duration)}
}

// Peak returns the maximum number of invocations that ran simultaneously
func (f *FakeEncoder) Peak() int64 {
	return atomic.LoadInt64(&f.peak)
}

// Calls returns a copy of the recorded invocations
func (f *FakeEncoder) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts invocations of one operation
func (f *FakeEncoder) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// SetDuration seeds the probed duration of an existing file, e.g. the
// source media a test slices from
func (f *FakeEncoder) SetDuration(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations[path] = d
}

func (f *FakeEncoder) begin(op, output string) error {
	n := atomic.AddInt64(&f.running, 1)
	for {
		p := atomic.LoadInt64(&f.peak)
		if n <= p || atomic.CompareAndSwapInt64(&f.peak, p, n) {
			break
		}
	}
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: op, Output: output})
	f.mu.Unlock()

	if f.FailOn != nil {
		if err := f.FailOn(op, output); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeEncoder) end() {
	atomic.AddInt64(&f.running, -1)
}

func (f *FakeEncoder) produce(output string, d time.Duration) error {
	if err := os.WriteFile(output, []byte("fake media"), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	f.durations[output] = d
	f.mu.Unlock()
	return nil
}

func (f *FakeEncoder) durationOf(path string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.durations[path]
	return d, ok
}

func (f *FakeEncoder) Slice(_ context.Context, _ string, _, dur time.Duration, output string) error {
	if err := f.begin("slice", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, dur)
}

func (f *FakeEncoder) ExtractRange(_ context.Context, _ string, _, dur time.Duration, output string) error {
	if err := f.begin("extract", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, dur)
}

func (f *FakeEncoder) Probe(_ context.Context, path string) (media.ProbeInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return media.ProbeInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}
	d, ok := f.durationOf(path)
	if !ok {
		return media.ProbeInfo{}, fmt.Errorf("probe %s: unknown file", path)
	}
	return media.ProbeInfo{
		Duration:   d,
		Width:      1280,
		Height:     720,
		FPS:        30,
		SampleRate: 44100,
		HasVideo:   true,
		HasAudio:   true,
	}, nil
}

func (f *FakeEncoder) Concat(_ context.Context, inputs []string, output string) error {
	if err := f.begin("concat", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	var total time.Duration
	for _, in := range inputs {
		d, ok := f.durationOf(in)
		if !ok {
			return fmt.Errorf("concat input %s: unknown file", in)
		}
		total += d
	}
	return f.produce(output, total)
}

func (f *FakeEncoder) ConcatAudio(_ context.Context, inputs []string, output string) error {
	if err := f.begin("concat-audio", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	var total time.Duration
	for _, in := range inputs {
		d, ok := f.durationOf(in)
		if !ok {
			return fmt.Errorf("concat-audio input %s: unknown file", in)
		}
		total += d
	}
	return f.produce(output, total)
}

func (f *FakeEncoder) Normalize(_ context.Context, input string, _ media.FrameSpec, output string) error {
	if err := f.begin("normalize", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	d, ok := f.durationOf(input)
	if !ok {
		return fmt.Errorf("normalize input %s: unknown file", input)
	}
	return f.produce(output, d)
}

func (f *FakeEncoder) BurnSubtitles(_ context.Context, input, _, output string) error {
	if err := f.begin("burn", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	d, ok := f.durationOf(input)
	if !ok {
		return fmt.Errorf("burn input %s: unknown file", input)
	}
	return f.produce(output, d)
}

func (f *FakeEncoder) RenderSlide(_ context.Context, spec media.SlideSpec, output string) error {
	if err := f.begin("slide", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, spec.Duration)
}

func (f *FakeEncoder) Blank(_ context.Context, _ media.FrameSpec, dur time.Duration, output string) error {
	if err := f.begin("blank", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, dur)
}

func (f *FakeEncoder) Silence(_ context.Context, dur time.Duration, output string) error {
	if err := f.begin("silence", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, dur)
}

func (f *FakeEncoder) StackVertical(_ context.Context, spec media.StackSpec, output string) error {
	if err := f.begin("stack", output); err != nil {
		f.end()
		return err
	}
	defer f.end()
	return f.produce(output, spec.Duration)
}
