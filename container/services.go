package container

import (
	"fmt"

	"github.com/yusufsyaifudin/boyong/config"
	"github.com/yusufsyaifudin/boyong/internal/catalog"
	"github.com/yusufsyaifudin/boyong/internal/svc/migratesvc"
	"github.com/yusufsyaifudin/boyong/pkg/uid"
)

type Services interface {
	UIDGen() uid.UID
	Migrate() migratesvc.Service
}

type ServicesImpl struct {
	uidGen  uid.UID
	migrate migratesvc.Service
}

var _ Services = (*ServicesImpl)(nil)

// SetupServices stitches the migration runner out of the registered catalog
// and the storage backend.
func SetupServices(conf config.Migration, repos Repositories) (svc *ServicesImpl, err error) {
	if repos == nil {
		err = fmt.Errorf("nil repositories on services preparation")
		return
	}

	uidGen, err := uid.NewSonyflake()
	if err != nil {
		err = fmt.Errorf("services cannot prepare uid generator: %w", err)
		return
	}

	cat, err := catalog.Load(catalog.DefaultRegistry())
	if err != nil {
		err = fmt.Errorf("services cannot load migration catalog: %w", err)
		return
	}

	stateRepo, err := repos.StateRepo()
	if err != nil {
		err = fmt.Errorf("services cannot get applied-state repo: %w", err)
		return
	}

	txnRunner, err := repos.TxnRunner()
	if err != nil {
		err = fmt.Errorf("services cannot get transaction runner: %w", err)
		return
	}

	migrateSvc, err := migratesvc.New(migratesvc.DefaultServiceConfig{
		Catalog:       cat,
		StateRepo:     stateRepo,
		Txn:           txnRunner,
		Fingerprinter: migratesvc.SourceFingerprint{},
		UIDGen:        uidGen,
		Database:      repos.Database(),
		MigrationsDir: conf.Dir,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare migration service: %w", err)
		return
	}

	svc = &ServicesImpl{
		uidGen:  uidGen,
		migrate: migrateSvc,
	}

	return svc, nil
}

func (s *ServicesImpl) UIDGen() uid.UID {
	return s.uidGen
}

func (s *ServicesImpl) Migrate() migratesvc.Service {
	return s.migrate
}
