package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "karta/internal/domain/listings"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	col := db.Collection("agg_listing")
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "published", Value: 1}, {Key: "price_cents", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}
	_, _ = col.Indexes().CreateMany(context.Background(), idx)
	return &ListingRepository{col: col}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, storeError(err)
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	doc := newListingDocument(listing)
	opts := options.Replace().SetUpsert(true)
	if _, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id domainlistings.ListingID) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)}); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	normalized := params.Normalized()
	filter := searchFilter(normalized)

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, storeError(err)
	}

	opts := options.Find().
		SetSort(searchSort(normalized.Sort)).
		SetSkip(int64(normalized.Offset)).
		SetLimit(int64(normalized.Limit))
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return domainlistings.SearchResult{}, storeError(err)
	}
	defer cursor.Close(ctx)

	var items []*domainlistings.Listing
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return domainlistings.SearchResult{}, storeError(err)
		}
		items = append(items, doc.toAggregate())
	}
	if err := cursor.Err(); err != nil {
		return domainlistings.SearchResult{}, storeError(err)
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

func searchFilter(params domainlistings.SearchParams) bson.M {
	filter := bson.M{}
	if params.Title != "" {
		filter["title"] = bson.M{"$regex": regexp.QuoteMeta(params.Title), "$options": "i"}
	}
	if params.Owner != "" {
		filter["owner_id"] = string(params.Owner)
	}
	if params.PriceMaxCents > 0 {
		filter["price_cents"] = bson.M{"$lte": params.PriceMaxCents}
	}
	if params.OnlyPublished {
		filter["published"] = true
	}
	return filter
}

func searchSort(order domainlistings.SortOrder) bson.D {
	switch order {
	case domainlistings.SortByPriceAsc:
		return bson.D{{Key: "price_cents", Value: 1}, {Key: "_id", Value: 1}}
	case domainlistings.SortByPriceDesc:
		return bson.D{{Key: "price_cents", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", domainlistings.ErrStoreUnavailable, err)
}

type listingDocument struct {
	ID            string `bson:"_id"`
	OwnerID       string `bson:"owner_id"`
	Title         string `bson:"title"`
	Description   string `bson:"description"`
	PriceCents    int64  `bson:"price_cents"`
	ContactNumber string `bson:"contact_number"`
	ContactEmail  string `bson:"contact_email"`
	ImageURL      string `bson:"image_url"`
	Published     bool   `bson:"published"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	return listingDocument{
		ID:            string(l.ID),
		OwnerID:       string(l.Owner),
		Title:         l.Title,
		Description:   l.Description,
		PriceCents:    l.PriceCents,
		ContactNumber: l.ContactNumber,
		ContactEmail:  l.ContactEmail,
		ImageURL:      l.ImageURL,
		Published:     l.Published,
		CreatedAt:     l.CreatedAt.UnixMilli(),
		UpdatedAt:     l.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toAggregate() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:            domainlistings.ListingID(d.ID),
		Owner:         domainlistings.OwnerID(d.OwnerID),
		Title:         d.Title,
		Description:   d.Description,
		PriceCents:    d.PriceCents,
		ContactNumber: d.ContactNumber,
		ContactEmail:  d.ContactEmail,
		ImageURL:      d.ImageURL,
		Published:     d.Published,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
