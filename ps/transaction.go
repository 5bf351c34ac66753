package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction identifies a committed write transaction.
type Transaction struct {
	Id     string
	When   time.Time
	Author string // "Name <email>" format
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

// IsZero reports whether the transaction committed nothing.
func (transaction Transaction) IsZero() bool {
	return transaction.Id == ""
}

func formatAuthor(name, email string) string {
	if name == "" && email == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func commitTransaction(c *object.Commit) Transaction {
	return Transaction{
		Id:     c.Hash.String(),
		When:   c.Committer.When,
		Author: formatAuthor(c.Author.Name, c.Author.Email),
	}
}

func (persistence *Persistence) LatestTransaction() Transaction {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	headRef, err := persistence.repo.Head()
	if err != nil || headRef == nil {
		// No commits yet
		return Transaction{}
	}

	commit, err := persistence.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}

	return commitTransaction(commit)
}

// TransactionsSince lists the transactions committed at or after asof,
// newest first.
func (persistence *Persistence) TransactionsSince(asof time.Time) []Transaction {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	var transactions []Transaction

	cIter, err := persistence.repo.Log(&git.LogOptions{
		Since: &asof,
	})
	if err != nil {
		return nil
	}

	_ = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, commitTransaction(c))
		return nil
	})

	return transactions
}

// TransactionsFrom lists the history reachable from the transaction id.
func (persistence *Persistence) TransactionsFrom(asof string) []Transaction {
	persistence.mu.RLock()
	defer persistence.mu.RUnlock()

	var transactions []Transaction

	cIter, err := persistence.repo.Log(&git.LogOptions{
		From: plumbing.NewHash(asof),
	})
	if err != nil {
		return nil
	}

	_ = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, commitTransaction(c))
		return nil
	})

	return transactions
}
