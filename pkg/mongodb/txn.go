package mongodb

import (
	"context"
	"fmt"
	"sync"

	"github.com/yusufsyaifudin/boyong/pkg/validator"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type TxnRunnerConfig struct {
	Client *mongo.Client `validate:"required"`
}

// TxnRunner wraps a function call in a multi-document transaction when the
// deployment topology supports one (replica set or mongos), otherwise it
// calls the function directly. On standalone deployments a crash between
// the function body and its state write leaves the two out of sync; callers
// must surface that weakening, not hide it.
type TxnRunner struct {
	Config TxnRunnerConfig

	probeOnce sync.Once
	supported bool
	probeErr  error
}

func NewTxnRunner(conf TxnRunnerConfig) (*TxnRunner, error) {
	err := validator.Validate(conf)
	if err != nil {
		return nil, err
	}

	return &TxnRunner{Config: conf}, nil
}

// helloResult is the subset of the `hello` command reply needed to decide
// whether multi-document transactions are available.
type helloResult struct {
	SetName string `bson:"setName"` // non-empty on replica set members
	Msg     string `bson:"msg"`     // "isdbgrid" when talking to mongos
}

// Supported reports whether the connected deployment can run
// multi-document transactions. The probe runs once and is cached for the
// lifetime of the runner; topology changes require a new process anyway.
func (t *TxnRunner) Supported(ctx context.Context) (bool, error) {
	t.probeOnce.Do(func() {
		var hello helloResult
		err := t.Config.Client.Database("admin").
			RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).
			Decode(&hello)
		if err != nil {
			t.probeErr = fmt.Errorf("error probing deployment topology: %w", err)
			return
		}

		t.supported = hello.SetName != "" || hello.Msg == "isdbgrid"
	})

	return t.supported, t.probeErr
}

// Execute runs fn inside a session transaction when supported. The context
// given to fn carries the session, so every store operation using that
// context joins the same transaction.
func (t *TxnRunner) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	supported, err := t.Supported(ctx)
	if err != nil {
		return err
	}

	if !supported {
		return fn(ctx)
	}

	session, err := t.Config.Client.StartSession()
	if err != nil {
		return fmt.Errorf("error start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, fn(ctx)
	})

	return err
}
