// Package worker runs independent jobs on a bounded number of goroutines
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently.
// Results are gathered as jobs finish, so Submit never waits on an unread result.
type Pool struct {
	workers    int
	jobQueue   chan Job
	collector  *ResultCollector
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex
	closed     bool
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		collector:  NewResultCollector(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.collector.Add(job.Execute(p.ctx))
		}
	}
}

// Submit queues a job. It returns false if the pool was shut down or its
// context ended before the job was accepted.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait waits for all submitted jobs and returns their results in completion order
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	p.cancelFunc()
	return p.collector.Results()
}

// Shutdown stops the workers; queued jobs that have not started are dropped
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeQueue()
}

func (p *Pool) closeQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
}

// Run executes jobs on workers goroutines and returns results in submission
// order. A job that never ran because ctx ended gets a nil entry.
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	pool := NewPool(ctx, workers)
	pool.Start()
	for i, job := range jobs {
		if !pool.Submit(&indexedJob{index: i, job: job}) {
			break
		}
	}

	ordered := make([]Result, len(jobs))
	for _, r := range pool.Wait() {
		ir := r.(*indexedResult)
		ordered[ir.index] = ir.result
	}
	return ordered
}

type indexedJob struct {
	index int
	job   Job
}

func (j *indexedJob) Execute(ctx context.Context) Result {
	return &indexedResult{index: j.index, result: j.job.Execute(ctx)}
}

type indexedResult struct {
	index  int
	result Result
}

func (r *indexedResult) GetError() error {
	if r.result == nil {
		return nil
	}
	return r.result.GetError()
}

// ResultCollector provides a safer way to collect results as they arrive
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of all collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}
