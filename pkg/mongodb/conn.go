package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const disconnectTimeout = 10 * time.Second

type ConnMakerConfig struct {
	URI      string `validate:"required"`
	Database string `validate:"required"`
}

// ConnMaker connects to one MongoDB deployment and keeps the handle, so
// callers can defer one Close for the whole connection.
type ConnMaker struct {
	config   ConnMakerConfig
	client   *mongo.Client
	database *mongo.Database
}

func NewConnMaker(ctx context.Context, conf ConnMakerConfig) (*ConnMaker, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	instance := &ConnMaker{
		config: conf,
	}

	err = instance.connect(ctx)
	if err != nil {
		// close previous opened connection if error happen
		if _err := instance.Close(); _err != nil {
			err = fmt.Errorf("close mongodb error: %w: %s", err, _err)
		}

		return nil, err
	}

	return instance, nil
}

func (i *ConnMaker) connect(ctx context.Context) error {
	client, err := mongo.Connect(options.Client().ApplyURI(i.config.URI))
	if err != nil {
		return fmt.Errorf("error connecting to mongodb: %w", err)
	}

	i.client = client

	err = client.Ping(ctx, nil)
	if err != nil {
		return fmt.Errorf("error ping mongodb: %w", err)
	}

	i.database = client.Database(i.config.Database)
	return nil
}

func (i *ConnMaker) Client() *mongo.Client {
	return i.client
}

func (i *ConnMaker) Database() *mongo.Database {
	return i.database
}

func (i *ConnMaker) Close() error {
	if i.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	ylog.Debug(ctx, "mongodb: trying to close")

	if err := i.client.Disconnect(ctx); err != nil {
		err = fmt.Errorf("(%s) %w", i.config.Database, err)
		ylog.Error(ctx, "mongodb: error occurred when closing dep", ylog.KV("error", err))
		return err
	}

	ylog.Debug(ctx, fmt.Sprintf("mongodb: %s success to close", i.config.Database))
	return nil
}
