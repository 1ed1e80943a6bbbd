package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"karta/internal/app/uow"
	domainlistings "karta/internal/domain/listings"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory opens one Mongo transaction per dispatched command.
type Factory struct {
	DB *mongo.Database

	ListingsRepo domainlistings.Repository
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(f.DB.ReadConcern()).
		SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{session: session, listings: f.ListingsRepo}, nil
}

// Unit is a live transaction. Commit and Rollback both end the
// session; a Unit is single-use.
type Unit struct {
	session  mongo.Session
	listings domainlistings.Repository
}

func (u *Unit) Listings() domainlistings.Repository { return u.listings }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext binds the session to ctx so repository calls made
// through the unit join the transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
