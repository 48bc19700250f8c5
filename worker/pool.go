package worker

import (
	"runtime"
	"sync"
)

// Pool bounds the number of tasks running at the same time.
type Pool struct {
	workers int
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a pool running at most workers tasks at once.
// A non-positive count falls back to runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers: workers,
		sem:     make(chan struct{}, workers),
	}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit blocks until a slot is free and then runs task in its own
// goroutine.
func (p *Pool) Submit(task func()) {
	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		task()
	}()
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// Map runs fn for every index in [0, count) and waits for all of them.
func (p *Pool) Map(count int, fn func(i int)) {
	for i := 0; i < count; i++ {
		i := i
		p.Submit(func() {
			fn(i)
		})
	}
	p.Wait()
}
