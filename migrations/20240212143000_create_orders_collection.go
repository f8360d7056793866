package migrations

import (
	"context"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func init() {
	catalog.MustRegister(catalog.Definition{
		Version:     "20240212143000",
		Description: "create orders collection with buyer and created_at index",
		Forward:     forward20240212143000,
		Backward:    backward20240212143000,
	})
}

func forward20240212143000(ctx context.Context, db *mongo.Database) error {
	err := db.CreateCollection(ctx, "orders")
	if err != nil {
		return err
	}

	_, err = db.Collection("orders").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "buyer_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	return err
}

func backward20240212143000(ctx context.Context, db *mongo.Database) error {
	return db.Collection("orders").Drop(ctx)
}
