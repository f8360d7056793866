package migrations

import (
	"context"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	catalog.MustRegister(catalog.Definition{
		Version:     "20240101090000",
		Description: "create users collection with unique email index",
		Forward:     forward20240101090000,
		Backward:    backward20240101090000,
	})
}

func forward20240101090000(ctx context.Context, db *mongo.Database) error {
	err := db.CreateCollection(ctx, "users")
	if err != nil {
		return err
	}

	_, err = db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	return err
}

func backward20240101090000(ctx context.Context, db *mongo.Database) error {
	return db.Collection("users").Drop(ctx)
}
