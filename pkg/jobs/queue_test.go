package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRemover struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
	removed  []string
}

func newFlakyRemover(failures map[string]int) *flakyRemover {
	if failures == nil {
		failures = map[string]int{}
	}
	return &flakyRemover{failures: failures, attempts: map[string]int{}}
}

func (r *flakyRemover) Delete(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[ref]++
	if r.failures[ref] > 0 {
		r.failures[ref]--
		return errors.New("disk busy")
	}
	r.removed = append(r.removed, ref)
	return nil
}

func (r *flakyRemover) removedRefs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func (r *flakyRemover) attemptsFor(ref string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[ref]
}

func TestCleanupQueueRemovesEnqueuedRefs(t *testing.T) {
	remover := newFlakyRemover(nil)
	q := NewCleanupQueue(remover, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue("c-1/LECTURER-a.png", "", "c-1/MANAGEMENT-b.png"))

	assert.Eventually(t, func() bool { return len(remover.removedRefs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"c-1/LECTURER-a.png", "c-1/MANAGEMENT-b.png"}, remover.removedRefs())
}

func TestCleanupQueueRetriesFailedRemoval(t *testing.T) {
	remover := newFlakyRemover(map[string]int{"c-1/LECTURER-a.png": 2})
	q := NewCleanupQueue(remover, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue("c-1/LECTURER-a.png"))

	assert.Eventually(t, func() bool { return len(remover.removedRefs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, remover.attemptsFor("c-1/LECTURER-a.png"))
}

func TestCleanupQueueGivesUpAfterMaxRetries(t *testing.T) {
	remover := newFlakyRemover(map[string]int{"stuck.png": 100})
	q := NewCleanupQueue(remover, QueueConfig{MaxRetries: 2, RetryDelay: 2 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue("stuck.png"))
	assert.Eventually(t, func() bool { return remover.attemptsFor("stuck.png") == 3 }, time.Second, 2*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	q.Stop()
	assert.Equal(t, 3, remover.attemptsFor("stuck.png"))
	assert.Empty(t, remover.removedRefs())
}

func TestCleanupQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewCleanupQueue(newFlakyRemover(nil), QueueConfig{})
	assert.Error(t, q.Enqueue("a.png"))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue("a.png"))
}
