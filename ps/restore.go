package ps

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/valleykid/growup/log"
)

// Snapshot tags the given transaction, or HEAD when asof is nil.
func (persistence *Persistence) Snapshot(name string, asof *Transaction) error {
	if err := persistence.ensureInitialized(); err != nil {
		return err
	}
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	if asof != nil {
		_, err := persistence.repo.CreateTag(name, plumbing.NewHash(asof.Id), nil)
		return err
	}

	headRef, err := persistence.repo.Head()
	if err != nil {
		return fmt.Errorf("no transactions to snapshot: %w", err)
	}
	_, err = persistence.repo.CreateTag(name, headRef.Hash(), nil)
	return err
}

// Recover moves HEAD back to a snapshot created by Snapshot.
func (persistence *Persistence) Recover(name string) error {
	if err := persistence.ensureInitialized(); err != nil {
		return err
	}
	ref, err := persistence.repo.Tag(name)
	if err != nil {
		return fmt.Errorf("snapshot %q: %w", name, err)
	}
	return persistence.resetTo(ref.Hash())
}

// Restore moves HEAD back to the state committed by asof. Later transactions
// stay reachable by id through TransactionsFrom until garbage collected.
func (persistence *Persistence) Restore(asof Transaction) error {
	if err := persistence.ensureInitialized(); err != nil {
		return err
	}
	if asof.Id == "" {
		return ErrUnknownTx
	}
	hash := plumbing.NewHash(asof.Id)
	if _, err := persistence.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTx, asof.Id)
	}
	return persistence.resetTo(hash)
}

func (persistence *Persistence) resetTo(hash plumbing.Hash) error {
	if err := persistence.acquireWriter(context.Background()); err != nil {
		return err
	}
	defer persistence.releaseWriter()

	persistence.mu.Lock()
	defer persistence.mu.Unlock()

	ref := plumbing.NewHashReference(persistence.headBranch(), hash)
	if err := persistence.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to reset HEAD: %w", err)
	}
	log.Storage.Info().Str("id", hash.String()).Msg("restored")
	return nil
}
