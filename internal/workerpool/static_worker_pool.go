// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workerpool runs fire-and-forget background work — principally the
// fsync-chain scanner's conditional metadata readahead — on a fixed number
// of goroutines instead of an unbounded fan-out of bare `go` statements.
package workerpool

import (
	"errors"
	"sync"
)

// Job is a unit of fire-and-forget work. Errors are not reported to the
// caller; a job that can fail meaningfully should log the failure itself.
type Job func()

// Pool runs jobs on two lanes: a small priority lane for readahead requests
// that are about to be needed (the scanner is already walking toward them),
// and a normal lane for speculative readahead.
type Pool struct {
	priority chan Job
	normal   chan Job
	wg       sync.WaitGroup
}

// NewStaticWorkerPool starts priorityWorkers + normalWorkers goroutines. At
// least one worker total is required.
func NewStaticWorkerPool(priorityWorkers, normalWorkers uint32) (*Pool, error) {
	if priorityWorkers == 0 && normalWorkers == 0 {
		return nil, errors.New("workerpool: at least one worker is required")
	}

	p := &Pool{
		priority: make(chan Job, 64),
		normal:   make(chan Job, 256),
	}

	for i := uint32(0); i < priorityWorkers; i++ {
		p.wg.Add(1)
		go p.runPriority()
	}
	for i := uint32(0); i < normalWorkers; i++ {
		p.wg.Add(1)
		go p.runNormal()
	}

	return p, nil
}

func (p *Pool) runPriority() {
	defer p.wg.Done()
	for job := range p.priority {
		job()
	}
}

func (p *Pool) runNormal() {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.normal:
			if !ok {
				return
			}
			job()
		case job, ok := <-p.priority:
			if ok {
				job()
			}
		}
	}
}

// SubmitPriority enqueues a job on the priority lane, falling back to
// running it inline if the lane is full.
func (p *Pool) SubmitPriority(job Job) {
	select {
	case p.priority <- job:
	default:
		job()
	}
}

// Submit enqueues a job on the normal lane, dropping it if the lane is
// full — readahead is an optimization, not a correctness requirement.
func (p *Pool) Submit(job Job) {
	select {
	case p.normal <- job:
	default:
	}
}

// Stop closes both lanes and waits for workers to drain. Safe to call on a
// nil pool.
func (p *Pool) Stop() {
	if p == nil {
		return
	}
	close(p.priority)
	close(p.normal)
	p.wg.Wait()
}
