package middleware

import (
	"context"

	"karta/internal/app/commands"
	"karta/internal/app/outbox"
)

// OutboxFlush stages change events for the duration of a command and
// delivers them to the sink once the wrapped bus has returned. It must
// sit OUTSIDE the Transaction middleware in the chain: delivery only
// runs after Commit, so a mutation that did not durably commit never
// notifies anyone.
func OutboxFlush(sink outbox.Sink) CommandMiddleware {
	if sink == nil {
		panic("middleware: outbox sink required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			ctx, stage := outbox.WithStage(ctx)
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			records := stage.Drain()
			if len(records) == 0 {
				return res, nil
			}
			if err := sink.Deliver(ctx, records); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
