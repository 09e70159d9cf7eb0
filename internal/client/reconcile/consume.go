package reconcile

import (
	"context"

	"github.com/love-developer/eras/internal/client/queue"
)

// Consume subscribes the engine to a queue's event stream, folding each
// completed upload into the canonical list. It returns when the stream
// closes or ctx is done. Run it in its own goroutine.
func (e *Engine) Consume(ctx context.Context, events <-chan queue.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case queue.EventCompleted:
				e.ApplyCompletion(ev.Task)
			case queue.EventFailed:
				if e.logger != nil {
					e.logger.Warn(ctx, "upload failed, placeholder kept for retry",
						"task_id", ev.TaskID, "kind", ev.Task.FailKind, "msg", ev.Task.FailMessage)
				}
			}
		}
	}
}
