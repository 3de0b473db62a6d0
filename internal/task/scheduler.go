package task

import (
	"context"
	"sync"
	"time"
)

const defaultSchedulerInterval = time.Minute

// RunnerFunc performs one pass of a periodic maintenance job.
type RunnerFunc func(context.Context)

// Scheduler invokes a runner on a fixed interval until stopped.
type Scheduler struct {
	interval     time.Duration
	runner       RunnerFunc
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewScheduler builds a stopped scheduler. Non-positive intervals default to one minute.
func NewScheduler(interval time.Duration, runner RunnerFunc) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
	}
}

// Interval reports the delay between scheduled runs.
func (scheduler *Scheduler) Interval() time.Duration {
	if scheduler == nil {
		return 0
	}
	return scheduler.interval
}

// Start launches the background loop. Calling Start on a running scheduler is a no-op.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	defer scheduler.controlMutex.Unlock()
	if scheduler.cancel != nil {
		return
	}
	runtimeContext, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	scheduler.done = make(chan struct{})

	go scheduler.loop(runtimeContext, scheduler.done)
}

// Stop cancels the loop and waits for an in-flight run to return.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(scheduler.interval)
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scheduler.run(ctx)
		}
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	scheduler.runner(ctx)
}
