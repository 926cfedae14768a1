// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workers

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/logger"
)

// stubSession satisfies browser.Session and counts Close calls.
type stubSession struct {
	closed *atomic.Int32
}

func (s stubSession) Navigate(context.Context, string) error { return nil }
func (s stubSession) URL() string                           { return "" }
func (s stubSession) Find(context.Context, browser.Selector) (*browser.Element, bool) {
	return nil, false
}
func (s stubSession) FindAll(context.Context, browser.Selector) []*browser.Element { return nil }
func (s stubSession) Click(context.Context, *browser.Element) error               { return nil }
func (s stubSession) WaitClickable(context.Context, browser.Selector, time.Duration) (*browser.Element, error) {
	return nil, browser.ErrTimeout
}
func (s stubSession) WaitFor(context.Context, time.Duration, ...browser.Selector) (int, error) {
	return -1, browser.ErrTimeout
}
func (s stubSession) Refresh()                                             {}
func (s stubSession) Submit(context.Context, browser.Selector, string) error { return nil }
func (s stubSession) PageSource(context.Context) (string, error)            { return "", nil }
func (s stubSession) PageText(context.Context) (string, error)              { return "", nil }
func (s stubSession) Close() error {
	s.closed.Add(1)
	return nil
}

func countingOpener() (browser.Opener, *atomic.Int32, *atomic.Int32) {
	var opened, closed atomic.Int32
	open := func(context.Context) (browser.Session, error) {
		opened.Add(1)
		return stubSession{closed: &closed}, nil
	}
	return open, &opened, &closed
}

func TestDivideIntoParts(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	parts := DivideIntoParts(items, 8)
	sizes := make([]int, len(parts))
	var joined []int
	for i, p := range parts {
		sizes[i] = len(p)
		joined = append(joined, p...)
	}
	assert.Equal(t, []int{3, 3, 3, 3, 3, 3, 3, 2}, sizes)
	assert.Equal(t, items, joined)
}

func TestDivideIntoParts_Properties(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for n := 1; n <= 9; n++ {
			items := make([]int, total)
			for i := range items {
				items[i] = i
			}
			parts := DivideIntoParts(items, n)
			require.Len(t, parts, n)

			var joined []int
			minSize, maxSize := total, 0
			for _, p := range parts {
				joined = append(joined, p...)
				minSize = min(minSize, len(p))
				maxSize = max(maxSize, len(p))
			}
			if !slices.Equal(items, joined) {
				t.Fatalf("DivideIntoParts(%d, %d) does not reconstruct input", total, n)
			}
			if maxSize-minSize > 1 {
				t.Errorf("DivideIntoParts(%d, %d) sizes differ by %d", total, n, maxSize-minSize)
			}
		}
	}
}

func TestDivideIntoParts_FewerItemsThanWorkers(t *testing.T) {
	parts := DivideIntoParts([]string{"a", "b"}, 4)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {}, {}}, parts)
}

func TestDivideIntoParts_PartsDoNotAlias(t *testing.T) {
	parts := DivideIntoParts([]int{1, 2, 3, 4}, 2)
	parts[0] = append(parts[0], 99)
	assert.Equal(t, []int{3, 4}, parts[1])
}

func TestAccumulator_ConcurrentExtend(t *testing.T) {
	acc := NewAccumulator[int]()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 5 {
				acc.Extend(w*10 + i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, acc.Len())
	assert.Len(t, acc.Drain(), 40)
	assert.Equal(t, 0, acc.Len())
}

func TestRunParallel_EightWorkersFiveItemsEach(t *testing.T) {
	open, opened, closed := countingOpener()
	items := make([]int, 40)
	for i := range items {
		items[i] = i
	}

	out, err := RunParallel(context.Background(), open, items, 8, logger.NewNop(),
		func(_ context.Context, w Worker, part []int, acc *Accumulator[int]) error {
			assert.NotNil(t, w.Session)
			for _, v := range part {
				acc.Extend(v)
			}
			return nil
		})
	require.NoError(t, err)

	assert.Len(t, out, 40)
	slices.Sort(out)
	assert.Equal(t, items, out)
	assert.Equal(t, int32(8), opened.Load())
	assert.Equal(t, int32(8), closed.Load())
}

func TestRunParallel_PreservesPartitionOrder(t *testing.T) {
	open, _, _ := countingOpener()
	items := []string{"a", "b", "c", "d", "e", "f"}

	out, err := RunParallel(context.Background(), open, items, 2, logger.NewNop(),
		func(_ context.Context, w Worker, part []string, acc *Accumulator[[]string]) error {
			acc.Extend(slices.Clone(part))
			return nil
		})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.ElementsMatch(t, [][]string{{"a", "b", "c"}, {"d", "e", "f"}}, out)
}

func TestRunParallel_ErrorsAndPanicsAreJoined(t *testing.T) {
	open, opened, closed := countingOpener()
	boom := errors.New("boom")

	out, err := RunParallel(context.Background(), open, []int{1, 2, 3}, 3, logger.NewNop(),
		func(_ context.Context, w Worker, part []int, acc *Accumulator[int]) error {
			switch part[0] {
			case 1:
				return boom
			case 2:
				panic("worker two exploded")
			}
			acc.Extend(part...)
			return nil
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "worker panic")
	assert.Equal(t, []int{3}, out)
	assert.Equal(t, opened.Load(), closed.Load(), "every opened session is closed")
}

func TestRunParallel_OpenFailure(t *testing.T) {
	open := func(context.Context) (browser.Session, error) {
		return nil, errors.New("no chrome")
	}
	_, err := RunParallel(context.Background(), open, []int{1}, 1, logger.NewNop(),
		func(context.Context, Worker, []int, *Accumulator[int]) error {
			t.Error("stage must not run without a session")
			return nil
		})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening session")
}

func TestRunParallel_EmptyPartitionsOpenNothing(t *testing.T) {
	open, opened, _ := countingOpener()
	_, err := RunParallel(context.Background(), open, []int{1, 2}, 5, logger.NewNop(),
		func(_ context.Context, _ Worker, part []int, acc *Accumulator[int]) error {
			acc.Extend(part...)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(2), opened.Load())
}

func TestRunSequential(t *testing.T) {
	var closed atomic.Int32
	sess := stubSession{closed: &closed}

	out, err := RunSequential(context.Background(), sess, []int{1, 2, 3}, logger.NewNop(),
		func(_ context.Context, w Worker, part []int, acc *Accumulator[int]) error {
			assert.Equal(t, 1, w.ID)
			for _, v := range part {
				acc.Extend(v * 2)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out)
	assert.Equal(t, int32(0), closed.Load(), "caller owns the session")
}
