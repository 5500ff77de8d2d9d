package workflow

import (
	"context"
	"fmt"

	"github.com/thelaunchpad/coach-worker/internal/coaching"
)

// ProcessInbound fetches unread mail and runs each message through the
// coaching pipeline. A message is marked read after a successful run or a
// clean skip; on error it stays unread so the cleanup workflow catches it.
func (w *Workflows) ProcessInbound(ctx context.Context) error {
	runID, err := w.runs.Start(ctx, NameProcessInbound)
	if err != nil {
		return err
	}

	policy, err := coaching.LoadPolicy(ctx, w.settings)
	if err != nil {
		w.failRun(ctx, runID, NameProcessInbound, err)
		return err
	}

	messages, err := w.transport.FetchUnread(ctx, maxInboundPerRun)
	if err != nil {
		w.failRun(ctx, runID, NameProcessInbound, err)
		return err
	}
	w.log.Infof("Found %d unread emails", len(messages))

	var outcome Outcome
	for _, msg := range messages {
		conv, err := w.pipeline.ProcessInbound(ctx, msg, policy)
		if err != nil {
			w.log.Errorf("Error processing email from %s: %v", msg.FromEmail, err)
			outcome.Failure("processing %s: %v", msg.FromEmail, err)
			continue
		}
		if conv != nil {
			outcome.Success()
		}
		if err := w.transport.MarkRead(ctx, msg.IMAPID); err != nil {
			w.log.Warnf("Failed to mark message from %s read: %v", msg.FromEmail, err)
		}
	}

	if err := w.runs.Complete(ctx, runID, outcome.Processed, outcome.Failed()); err != nil {
		w.log.Errorf("Failed to record workflow completion: %v", err)
	}
	w.log.Infof("%s completed: %d emails processed, %d errors", NameProcessInbound, outcome.Processed, outcome.Failed())
	return nil
}

func (w *Workflows) failRun(ctx context.Context, runID, name string, err error) {
	w.log.Errorf("%s workflow failed: %v", name, err)
	if ferr := w.runs.Fail(ctx, runID, fmt.Sprintf("%v", err)); ferr != nil {
		w.log.Errorf("Failed to record workflow failure: %v", ferr)
	}
}
