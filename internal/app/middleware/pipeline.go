package middleware

import (
	"context"

	"karta/internal/app/commands"
	"karta/internal/app/queries"
)

// CommandMiddleware decorates a command bus. Middleware listed first in
// ChainCommands runs outermost.
type CommandMiddleware func(next commands.Bus) commands.Bus

type QueryMiddleware func(next queries.Bus) queries.Bus

func ChainCommands(base commands.Bus, mws ...CommandMiddleware) commands.Bus {
	bus := base
	for i := range mws {
		bus = mws[len(mws)-1-i](bus)
	}
	return bus
}

func ChainQueries(base queries.Bus, mws ...QueryMiddleware) queries.Bus {
	bus := base
	for i := range mws {
		bus = mws[len(mws)-1-i](bus)
	}
	return bus
}

// commandFunc and queryFunc let middleware be written as closures
// instead of one struct per wrapper.
type commandFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f commandFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func wrapCommand(next commands.Bus) commandFunc {
	return next.Dispatch
}

type queryFunc func(ctx context.Context, q queries.Query) (any, error)

func (f queryFunc) Ask(ctx context.Context, q queries.Query) (any, error) {
	return f(ctx, q)
}

func wrapQuery(next queries.Bus) queryFunc {
	return next.Ask
}
