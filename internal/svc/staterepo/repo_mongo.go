package staterepo

import (
	"context"
	"fmt"

	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type RepoMongoConfig struct {
	Database   *mongo.Database `validate:"required"`
	Collection string          `validate:"required"`
}

type RepoMongo struct {
	Config RepoMongoConfig
}

var _ Repo = (*RepoMongo)(nil)

// Mongo return repo interface which implements using MongoDB
func Mongo(conf RepoMongoConfig) (service *RepoMongo, err error) {
	err = validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	service = &RepoMongo{
		Config: conf,
	}
	return
}

func (p *RepoMongo) collection() *mongo.Collection {
	return p.Config.Database.Collection(p.Config.Collection)
}

func (p *RepoMongo) EnsureInitialized(ctx context.Context) error {
	names, err := p.Config.Database.ListCollectionNames(ctx,
		bson.D{{Key: "name", Value: p.Config.Collection}})
	if err != nil {
		return fmt.Errorf("error listing collections: %w", err)
	}

	if len(names) == 0 {
		err = p.Config.Database.CreateCollection(ctx, p.Config.Collection)
		if err != nil {
			return fmt.Errorf("error creating collection %s: %w", p.Config.Collection, err)
		}
	}

	// unique index also rejects a concurrent duplicate record
	_, err = p.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating version index on %s: %w", p.Config.Collection, err)
	}

	return nil
}

func (p *RepoMongo) ListApplied(ctx context.Context) (records []AppliedRecord, err error) {
	cursor, err := p.collection().Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		err = fmt.Errorf("error find applied records: %w", err)
		return
	}

	records = make([]AppliedRecord, 0)
	err = cursor.All(ctx, &records)
	if err != nil {
		err = fmt.Errorf("error decode applied records: %w", err)
		return
	}

	return
}

func (p *RepoMongo) Record(ctx context.Context, rec AppliedRecord) error {
	_, err := p.collection().InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateVersion, rec.Version)
	}

	if err != nil {
		return fmt.Errorf("error insert applied record %s: %w", rec.Version, err)
	}

	return nil
}

func (p *RepoMongo) Remove(ctx context.Context, version string) error {
	_, err := p.collection().DeleteOne(ctx, bson.D{{Key: "version", Value: version}})
	if err != nil {
		return fmt.Errorf("error delete applied record %s: %w", version, err)
	}

	return nil
}
