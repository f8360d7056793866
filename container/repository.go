package container

import (
	"context"
	"fmt"
	"io"

	"github.com/yusufsyaifudin/boyong/config"
	"github.com/yusufsyaifudin/boyong/internal/svc/staterepo"
	"github.com/yusufsyaifudin/boyong/pkg/mongodb"
	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/multierr"
)

// Repositories is an abstraction layer over the storage backend: the target
// database migrations run against, the applied-state record store on the
// same deployment, and the transactional boundary capability.
type Repositories interface {
	io.Closer

	Database() *mongo.Database
	StateRepo() (staterepo.Repo, error)
	TxnRunner() (*mongodb.TxnRunner, error)
}

// RepositoryImpl the real implementation of Repositories
type RepositoryImpl struct {
	conn       *mongodb.ConnMaker `validate:"required"`
	collection string             `validate:"required"`
}

var _ Repositories = (*RepositoryImpl)(nil)

// SetupRepositories return pointer because it must be closed in deferred
// mode; any passed value using interface won't let user Close any
// dependencies during run-time.
func SetupRepositories(ctx context.Context, conf config.MongoDB, migrationConf config.Migration) (*RepositoryImpl, error) {
	conn, err := mongodb.NewConnMaker(ctx, mongodb.ConnMakerConfig{
		URI:      conf.URI,
		Database: conf.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}

	dep := &RepositoryImpl{
		conn:       conn,
		collection: migrationConf.Collection,
	}

	err = validator.Validate(dep)
	if err != nil {
		if _err := conn.Close(); _err != nil {
			err = multierr.Append(err, _err)
		}

		return nil, err
	}

	return dep, nil
}

func (r *RepositoryImpl) Database() *mongo.Database {
	return r.conn.Database()
}

// StateRepo returns the applied-state record store living next to the data
// it describes, so both join the same transaction.
func (r *RepositoryImpl) StateRepo() (staterepo.Repo, error) {
	return staterepo.Mongo(staterepo.RepoMongoConfig{
		Database:   r.conn.Database(),
		Collection: r.collection,
	})
}

func (r *RepositoryImpl) TxnRunner() (*mongodb.TxnRunner, error) {
	return mongodb.NewTxnRunner(mongodb.TxnRunnerConfig{
		Client: r.conn.Client(),
	})
}

// Close will close all dependencies.
func (r *RepositoryImpl) Close() error {
	if r == nil {
		return nil
	}

	if r.conn == nil {
		return nil
	}

	var err error
	if _err := r.conn.Close(); _err != nil {
		err = multierr.Append(err, fmt.Errorf("close mongodb error: %w", _err))
	}

	return err
}
