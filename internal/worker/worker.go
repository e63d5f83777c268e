// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrCancelled is the result error of a task cancelled before it finished.
var ErrCancelled = errors.New("request cancelled")

// Result is the outcome of a task: Value on success, Err on failure.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// =============================================================================
// TASK
// =============================================================================

// Task runs one blocking job in the background and resolves exactly once.
type Task[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc

	once   sync.Once
	done   chan struct{}
	result Result[T]
}

// Start runs job on a new goroutine. The job receives a context derived
// from parent that is cancelled by Task.Cancel.
func Start[T any](parent context.Context, job func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(parent)
	t := &Task[T]{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(job)
	return t
}

func (t *Task[T]) run(job func(ctx context.Context) (T, error)) {
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: job panicked: %v", r)
			t.resolve(Result[T]{Err: fmt.Errorf("worker panic: %v", r)})
		}
	}()

	v, err := job(t.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && t.ctx.Err() != nil {
			err = ErrCancelled
		}
		t.resolve(Result[T]{Err: err})
		return
	}
	t.resolve(Result[T]{Value: v})
}

// resolve records the first result and ignores the rest.
func (t *Task[T]) resolve(r Result[T]) {
	t.once.Do(func() {
		t.result = r
		close(t.done)
	})
}

// Cancel stops the job. If the task has not resolved yet it resolves
// immediately with ErrCancelled; a later result from the job is dropped.
func (t *Task[T]) Cancel() {
	t.cancel()
	t.resolve(Result[T]{Err: ErrCancelled})
}

// Done is closed once the task has resolved.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Result returns the resolved result. It blocks until Done is closed.
func (t *Task[T]) Result() Result[T] {
	<-t.done
	return t.result
}

// Wait blocks until the task resolves or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (Result[T], error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
}

// =============================================================================
// SLOT
// =============================================================================

// Slot holds at most one in-flight task. Replacing the task cancels the
// previous one. Safe for concurrent use.
type Slot[T any] struct {
	mu   sync.Mutex
	task *Task[T]
}

// Replace stores task as the current task, cancelling any previous one.
func (s *Slot[T]) Replace(task *Task[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil && s.task != task {
		s.task.Cancel()
	}
	s.task = task
}

// Current returns the current task, or nil.
func (s *Slot[T]) Current() *Task[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// Busy reports whether the current task is still running.
func (s *Slot[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		return false
	}
	select {
	case <-s.task.Done():
		return false
	default:
		return true
	}
}

// Cancel cancels the current task, if any, and reports whether one was
// still running.
func (s *Slot[T]) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		return false
	}
	running := true
	select {
	case <-s.task.Done():
		running = false
	default:
	}
	s.task.Cancel()
	return running
}

// Clear cancels and forgets the current task.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
}
