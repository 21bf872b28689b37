package dispatcher

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/imageforge/internal/pipeline"
)

// StartWorkers launches the fixed-size in-process worker pool (§4.1 enqueue
// mode 2, §5 "fixed-size pool of N cooperating workers"). Each worker is a
// sequential driver of the Task Pipeline: it pops one task id, runs it to
// completion or retry, and only then pops the next. Workers exit once the
// queue is closed and drained, after finishing whatever task they currently
// hold. There is no grace period here: every task runs under ctx, so
// cancelling ctx cancels in-flight tasks at once.
func (d *Dispatcher) StartWorkers(ctx context.Context, p *pipeline.Pipeline, concurrency int, workerIDPrefix string) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		workerID := workerIDPrefix + "-" + strconv.Itoa(i)
		go func(workerID string) {
			defer wg.Done()
			d.runInProcessWorker(ctx, p, workerID)
		}(workerID)
	}
	return &wg
}

func (d *Dispatcher) runInProcessWorker(ctx context.Context, p *pipeline.Pipeline, workerID string) {
	for {
		env, ok := d.queue.Pop()
		if !ok {
			return
		}
		taskID, err := uuid.Parse(env.taskID)
		if err != nil {
			d.logger.Error("malformed task id in queue", "task_id", env.taskID, "err", err)
			continue
		}
		RunPipeline(ctx, d, p, taskID, workerID)
	}
}

// Shutdown closes the in-process queue, waking every worker's blocked Pop.
// Workers still pop the task ids left in the queue and exit once it is empty.
func (d *Dispatcher) Shutdown() {
	d.queue.Close()
}
