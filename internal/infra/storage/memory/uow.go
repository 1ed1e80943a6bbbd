package memory

import (
	"context"

	"karta/internal/app/uow"
	domainlistings "karta/internal/domain/listings"
)

// UoWFactory hands out units of work backed by shared in-memory repos.
// There is no real transaction: writes apply immediately and Rollback
// cannot undo them. Good enough for local runs and tests.
type UoWFactory struct {
	Listings *ListingRepository
}

func NewUoWFactory(listings *ListingRepository) *UoWFactory {
	return &UoWFactory{Listings: listings}
}

func (f *UoWFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &unitOfWork{listings: f.Listings}, nil
}

type unitOfWork struct {
	listings *ListingRepository
}

func (u *unitOfWork) Listings() domainlistings.Repository { return u.listings }

func (u *unitOfWork) Commit(ctx context.Context) error   { return nil }
func (u *unitOfWork) Rollback(ctx context.Context) error { return nil }
