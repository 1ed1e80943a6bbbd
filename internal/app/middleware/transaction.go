package middleware

import (
	"context"
	"errors"

	"karta/internal/app/commands"
	"karta/internal/app/uow"
)

var ErrUnitOfWorkMissing = errors.New("middleware: unit of work not found")

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// contextInjector is implemented by units that must thread transaction
// state (a Mongo session) through the request context.
type contextInjector interface {
	InjectContext(context.Context) context.Context
}

// Transaction opens a unit of work per command and commits it only when
// the handler succeeds. Any other exit rolls the unit back.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var opts uow.TxOptions
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			return runInUnit(ctx, unit, cmd, nextFn)
		})
	}
}

func runInUnit(ctx context.Context, unit uow.UnitOfWork, cmd commands.Command, next commandFunc) (res any, err error) {
	if injector, ok := unit.(contextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	ctx = uow.ContextWithUnitOfWork(ctx, unit)
	defer func() {
		if err != nil {
			_ = unit.Rollback(ctx)
		}
	}()

	res, err = next(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err = unit.Commit(ctx); err != nil {
		return nil, err
	}
	return res, nil
}
