package middleware

import (
	"context"

	"karta/internal/app/commands"
)

// SelfValidating commands are checked before any store write; a failed
// check never reaches the handler and never emits a change event.
type SelfValidating interface {
	Validate() error
}

func Validation() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if v, ok := cmd.(SelfValidating); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return nextFn(ctx, cmd)
		})
	}
}
