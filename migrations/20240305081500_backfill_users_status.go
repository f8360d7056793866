package migrations

import (
	"context"

	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func init() {
	catalog.MustRegister(catalog.Definition{
		Version:     "20240305081500",
		Description: "backfill users status field to active",
		Forward:     forward20240305081500,
		Backward:    backward20240305081500,
	})
}

func forward20240305081500(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").UpdateMany(ctx,
		bson.M{"status": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"status": "active"}},
	)
	return err
}

func backward20240305081500(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").UpdateMany(ctx,
		bson.M{"status": "active"},
		bson.M{"$unset": bson.M{"status": ""}},
	)
	return err
}
