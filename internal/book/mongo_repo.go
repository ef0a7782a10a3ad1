package book

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBook struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Author    string             `bson:"author"`
	Price     float64            `bson:"price"`
	Rating    *float64           `bson:"rating,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (m mongoBook) toBook() Book {
	return Book{
		ID:        m.ID.Hex(),
		Title:     m.Title,
		Author:    m.Author,
		Price:     m.Price,
		Rating:    m.Rating,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

var mongoSortFields = map[string]string{
	"id":         "_id",
	"title":      "title",
	"author":     "author",
	"price":      "price",
	"rating":     "rating",
	"created_at": "createdAt",
}

// MongoRepo stores books as documents. Identifiers are ObjectID hex strings.
type MongoRepo struct {
	coll    *mongo.Collection
	timeout time.Duration
	now     func() time.Time
}

func NewMongoRepo(db *mongo.Database, timeout time.Duration) *MongoRepo {
	return &MongoRepo{coll: db.Collection("books"), timeout: timeout, now: time.Now}
}

func (r *MongoRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *MongoRepo) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.coll.Database().Client().Ping(timeoutCtx, nil)
}

func (r *MongoRepo) filter(f Filter) bson.M {
	if f.IsZero() {
		return bson.M{}
	}
	re := primitive.Regex{Pattern: f.Pattern(), Options: "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"author": re},
	}}
}

func (r *MongoRepo) Count(ctx context.Context, f Filter) (int, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.coll.CountDocuments(timeoutCtx, r.filter(f))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *MongoRepo) Find(ctx context.Context, f Filter, skip, limit int, s SortSpec) ([]Book, error) {
	if skip < 0 {
		return []Book{}, nil
	}
	field, ok := mongoSortFields[s.Field]
	if !ok {
		field = "_id"
	}
	dir := 1
	if s.Desc {
		dir = -1
	}
	sort := bson.D{{Key: field, Value: dir}}
	if field != "_id" {
		sort = append(sort, bson.E{Key: "_id", Value: dir})
	}

	opts := options.Find().SetSort(sort)
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	cur, err := r.coll.Find(timeoutCtx, r.filter(f), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(timeoutCtx)

	var docs []mongoBook
	if err := cur.All(timeoutCtx, &docs); err != nil {
		return nil, err
	}
	out := make([]Book, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toBook())
	}
	return out, nil
}

func (r *MongoRepo) Insert(ctx context.Context, d Draft) (Book, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := mongoBook{
		ID:        primitive.NewObjectID(),
		Title:     d.Title,
		Author:    d.Author,
		Price:     d.Price,
		Rating:    d.Rating,
		CreatedAt: now,
		UpdatedAt: now,
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	if _, err := r.coll.InsertOne(timeoutCtx, doc); err != nil {
		return Book{}, err
	}
	return doc.toBook(), nil
}

func (r *MongoRepo) FindByID(ctx context.Context, id string) (Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Book{}, ErrNotFound
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var doc mongoBook
	if err := r.coll.FindOne(timeoutCtx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return Book{}, notFound(err)
	}
	return doc.toBook(), nil
}

func (r *MongoRepo) UpdateByID(ctx context.Context, id string, p Patch) (Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Book{}, ErrNotFound
	}

	set := bson.M{"updatedAt": r.now().UTC().Truncate(time.Millisecond)}
	for k, v := range patchRecord(p) {
		set[k] = v
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoBook
	err = r.coll.FindOneAndUpdate(timeoutCtx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return Book{}, notFound(err)
	}
	return doc.toBook(), nil
}

func (r *MongoRepo) DeleteByID(ctx context.Context, id string) (Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Book{}, ErrNotFound
	}

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var doc mongoBook
	if err := r.coll.FindOneAndDelete(timeoutCtx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return Book{}, notFound(err)
	}
	return doc.toBook(), nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
