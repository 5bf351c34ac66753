package growup

import (
	"fmt"

	"github.com/valleykid/growup/client"
	"github.com/valleykid/growup/config"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/db"
	"github.com/valleykid/growup/ps"
)

// Instance binds one persistence backend to the engine and hands out
// clients that share it.
type Instance struct {
	Persistence ps.KVStore
	factory     *db.Factory
}

func Open(persistence ps.KVStore) *Instance {
	return &Instance{
		Persistence: persistence,
		factory:     db.NewFactory(persistence),
	}
}

// OpenBackend creates the backend of the given kind (see config.Backend*)
// under path and opens an Instance on it. identity authors git commits and
// is ignored by the other backends.
func OpenBackend(kind, path string, identity core.Identity) (*Instance, error) {
	return OpenConfig(config.BackendConfig{Kind: kind, Path: path}, identity)
}

// OpenConfig is OpenBackend driven by the backend section of the
// configuration, which may also name a git remote to clone on first use.
func OpenConfig(backend config.BackendConfig, identity core.Identity) (*Instance, error) {
	var (
		store ps.KVStore
		err   error
	)
	switch backend.Kind {
	case config.BackendMemory:
		var p *ps.Persistence
		if p, err = ps.NewMemoryPersistence(); err == nil {
			p.SetIdentity(identity)
			store = p
		}
	case config.BackendGit:
		var gitURL *string
		if backend.GitURL != "" {
			gitURL = &backend.GitURL
		}
		var p *ps.Persistence
		if p, err = ps.NewFilePersistence(backend.Path, gitURL); err == nil {
			p.SetIdentity(identity)
			store = p
		}
	case config.BackendPebble:
		store, err = ps.NewPebbleStore(backend.Path)
	case config.BackendSQLite:
		store, err = ps.NewSQLiteStore(backend.Path)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", backend.Kind, err)
	}
	return Open(store), nil
}

func (instance *Instance) Factory() *db.Factory {
	return instance.factory
}

// Client returns a new client for the database name.
func (instance *Instance) Client(name string, opts ...client.Option) *client.Client {
	return client.New(instance.factory, name, opts...)
}

// Git returns the git backend, or false when the instance runs on another
// backend. History, restore and remote sync are only available on git.
func (instance *Instance) Git() (*ps.Persistence, bool) {
	p, ok := instance.Persistence.(*ps.Persistence)
	return p, ok
}

// Close closes the backend. Clients must be closed first.
func (instance *Instance) Close() error {
	return instance.Persistence.Close()
}
