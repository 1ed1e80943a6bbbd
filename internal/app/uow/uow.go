package uow

import (
	"context"

	domainlistings "karta/internal/domain/listings"
)

// UnitOfWork scopes repository access to a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
