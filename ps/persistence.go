package ps

import (
	"context"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
)

// DefaultIdentity authors commits when no identity is set.
var DefaultIdentity = core.Identity{Name: "growup", Email: "growup@localhost"}

// Persistence is a KVStore backed by a Git repository. Every key is a file in
// the root tree of HEAD, named by the hex encoding of the key, and every
// committed transaction is a Git commit.
type Persistence struct {
	repo     *git.Repository
	mu       sync.RWMutex // guards HEAD
	writeSem chan struct{}
	identity core.Identity
	closed   bool
}

// IsInitialized returns true if the persistence layer has a valid repository
func (p *Persistence) IsInitialized() bool {
	return p != nil && p.repo != nil
}

func (p *Persistence) ensureInitialized() error {
	if !p.IsInitialized() {
		return ErrNotInitialized
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// SetIdentity sets the author of subsequent commits.
func (p *Persistence) SetIdentity(identity core.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = identity
}

func newPersistence(repo *git.Repository) *Persistence {
	return &Persistence{
		repo:     repo,
		writeSem: make(chan struct{}, 1),
		identity: DefaultIdentity,
	}
}

func NewMemoryPersistence() (*Persistence, error) {
	wt := memfs.New()
	storer := memory.NewStorage()

	repo, err := git.Init(storer, git.WithWorkTree(wt))
	if err != nil {
		return nil, err
	}

	return newPersistence(repo), nil
}

// NewFilePersistence opens the repository under baseDir, creating it when
// missing. A non-nil gitUrl clones that remote into baseDir instead.
func NewFilePersistence(baseDir string, gitUrl *string) (*Persistence, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	wt := osfs.New(baseDir)
	fs, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}

	storer := filesystem.NewStorageWithOptions(
		fs,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	var repo *git.Repository

	if gitUrl != nil {
		repo, err = git.Clone(storer, wt, &git.CloneOptions{
			URL: *gitUrl,
		})
		if err != nil {
			return nil, err
		}
	} else {
		_, statErr := os.Stat(fs.Root())
		if statErr != nil {
			repo, err = git.Init(storer, git.WithWorkTree(wt))
		} else {
			repo, err = git.Open(storer, wt)
		}
		if err != nil {
			return nil, err
		}
	}

	log.Storage.Debug().Str("dir", baseDir).Msg("opened git persistence")
	return newPersistence(repo), nil
}

// Begin starts a transaction on a snapshot of HEAD. Writable transactions
// are serialized.
func (p *Persistence) Begin(ctx context.Context, writable bool) (Tx, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}

	if writable {
		if err := p.acquireWriter(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.RLock()
	treeHash, err := p.getCurrentTree()
	p.mu.RUnlock()
	if err == nil && p.isClosed() {
		err = ErrClosed
	}
	if err != nil {
		if writable {
			p.releaseWriter()
		}
		return nil, err
	}

	tx, err := newGitTx(p, treeHash, writable)
	if err != nil {
		if writable {
			p.releaseWriter()
		}
		return nil, err
	}
	return tx, nil
}

func (p *Persistence) acquireWriter(ctx context.Context) error {
	select {
	case p.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persistence) releaseWriter() {
	<-p.writeSem
}

func (p *Persistence) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close marks the store closed. Pending commits fail with ErrClosed.
func (p *Persistence) Close() error {
	if !p.IsInitialized() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
