package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderhub/internal/cart/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "carts"

type lineDoc struct {
	ItemID   string `bson:"itemId"`
	Quantity int    `bson:"quantity"`
	Name     string `bson:"name,omitempty"`
	Price    string `bson:"price"`
	PhotoRef string `bson:"photoRef,omitempty"`
}

type cartDoc struct {
	UserID    string    `bson:"userId"`
	Items     []lineDoc `bson:"items"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type CartRepo struct {
	db *mongo.Database
}

func NewCartRepo(db *mongo.Database) *CartRepo {
	return &CartRepo{db: db}
}

func (r *CartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	var doc cartDoc
	err := r.db.Collection(collection).FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}

	cart := make(domain.Cart, 0, len(doc.Items))
	for _, d := range doc.Items {
		l, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		cart = append(cart, l)
	}
	return cart, nil
}

func (r *CartRepo) Put(ctx context.Context, userID string, cart domain.Cart) error {
	items := make([]lineDoc, 0, len(cart))
	for _, l := range cart {
		items = append(items, toDoc(l))
	}
	_, err := r.db.Collection(collection).UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{"items": items, "updatedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("put cart: %w", err)
	}
	return nil
}

// PushLines appends each line unless its item is already stored, so two
// devices merging at once cannot duplicate an item.
func (r *CartRepo) PushLines(ctx context.Context, userID string, lines domain.Cart) error {
	coll := r.db.Collection(collection)
	now := time.Now().UTC()

	_, err := coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$setOnInsert": bson.M{"userId": userID, "items": bson.A{}},
			"$set":         bson.M{"updatedAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure cart: %w", err)
	}

	for _, l := range lines {
		_, err := coll.UpdateOne(ctx,
			bson.M{"userId": userID, "items.itemId": bson.M{"$ne": l.ItemID}},
			bson.M{"$push": bson.M{"items": toDoc(l)}},
		)
		if err != nil {
			return fmt.Errorf("push cart line %s: %w", l.ItemID, err)
		}
	}
	return nil
}

func toDoc(l domain.Line) lineDoc {
	return lineDoc{
		ItemID:   l.ItemID,
		Quantity: l.Quantity,
		Name:     l.Name,
		Price:    l.Price.String(),
		PhotoRef: l.PhotoRef,
	}
}

func fromDoc(d lineDoc) (domain.Line, error) {
	price := decimal.Zero
	if d.Price != "" {
		p, err := decimal.NewFromString(d.Price)
		if err != nil {
			return domain.Line{}, fmt.Errorf("decode price of %s: %w", d.ItemID, err)
		}
		price = p
	}
	return domain.Line{
		ItemID:   d.ItemID,
		Quantity: d.Quantity,
		Name:     d.Name,
		Price:    price,
		PhotoRef: d.PhotoRef,
	}, nil
}
