package ps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
	"github.com/valleykid/growup/log"
)

// DefaultRemote is the remote Push, Pull and Fetch use when none is named.
const DefaultRemote = "origin"

type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeToken AuthType = "token"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeBasic AuthType = "basic"
)

var ErrUnknownAuth = errors.New("persistence: unknown auth type")

// RemoteAuth holds the credentials for a remote. A nil *RemoteAuth connects
// without credentials.
type RemoteAuth struct {
	Type AuthType
	// Token is sent as the password of an HTTP basic login.
	Token string
	// KeyPath defaults to ~/.ssh/id_rsa.
	KeyPath    string
	Passphrase string
	Username   string
	Password   string
}

// Remote is a named set of URLs the repository syncs with.
type Remote struct {
	Name string
	URLs []string
}

func (auth *RemoteAuth) method() (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "", AuthTypeNone:
		return nil, nil
	case AuthTypeToken:
		return &http.BasicAuth{Username: "git", Password: auth.Token}, nil
	case AuthTypeBasic:
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	case AuthTypeSSH:
		keyPath := auth.KeyPath
		if keyPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locating ssh key: %w", err)
			}
			keyPath = filepath.Join(home, ".ssh", "id_rsa")
		}
		return ssh.NewPublicKeysFromFile("git", keyPath, auth.Passphrase)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAuth, auth.Type)
}

func (p *Persistence) AddRemote(name, url string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if _, err := p.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}}); err != nil {
		return fmt.Errorf("adding remote %s: %w", name, err)
	}
	log.Storage.Debug().Str("remote", name).Str("url", url).Msg("remote added")
	return nil
}

// ListRemotes returns the configured remotes sorted by name.
func (p *Persistence) ListRemotes() ([]Remote, error) {
	if err := p.ensureInitialized(); err != nil {
		return nil, err
	}
	cfg, err := p.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("reading remotes: %w", err)
	}

	remotes := make([]Remote, 0, len(cfg.Remotes))
	for name, rc := range cfg.Remotes {
		remotes = append(remotes, Remote{Name: name, URLs: rc.URLs})
	}
	sort.Slice(remotes, func(i, j int) bool { return remotes[i].Name < remotes[j].Name })
	return remotes, nil
}

func (p *Persistence) RemoveRemote(name string) error {
	if err := p.ensureInitialized(); err != nil {
		return err
	}
	if err := p.repo.DeleteRemote(name); err != nil {
		return fmt.Errorf("removing remote %s: %w", name, err)
	}
	log.Storage.Debug().Str("remote", name).Msg("remote removed")
	return nil
}

func (p *Persistence) currentBranch() string {
	return p.headBranch().Short()
}

// syncTarget fills in the default remote and branch and resolves auth.
func (p *Persistence) syncTarget(remote, branch string, auth *RemoteAuth) (string, string, transport.AuthMethod, error) {
	if err := p.ensureInitialized(); err != nil {
		return "", "", nil, err
	}
	if remote == "" {
		remote = DefaultRemote
	}
	if branch == "" {
		branch = p.currentBranch()
	}
	method, err := auth.method()
	if err != nil {
		return "", "", nil, fmt.Errorf("remote %s: %w", remote, err)
	}
	return remote, branch, method, nil
}

// Push sends the committed transactions of branch, the current one when
// empty, to the same branch of remote.
func (p *Persistence) Push(remote, branch string, auth *RemoteAuth) error {
	remote, branch, method, err := p.syncTarget(remote, branch, auth)
	if err != nil {
		return err
	}
	ref := plumbing.NewBranchReferenceName(branch)

	p.mu.RLock()
	defer p.mu.RUnlock()
	err = p.repo.Push(&git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:       method,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pushing to %s: %w", remote, err)
	}
	log.Storage.Info().Str("remote", remote).Str("branch", branch).Msg("pushed")
	return nil
}

// Fetch updates the remote-tracking branches of remote without touching
// HEAD.
func (p *Persistence) Fetch(remote string, auth *RemoteAuth) error {
	remote, _, method, err := p.syncTarget(remote, "", auth)
	if err != nil {
		return err
	}
	err = p.repo.Fetch(&git.FetchOptions{RemoteName: remote, Auth: method})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching from %s: %w", remote, err)
	}
	return nil
}

// Pull fetches remote and fast-forwards the current branch to its copy of
// branch. Diverged histories are refused with ErrDiverged; nothing merges.
func (p *Persistence) Pull(remote, branch string, auth *RemoteAuth) error {
	remote, branch, _, err := p.syncTarget(remote, branch, auth)
	if err != nil {
		return err
	}
	if err := p.Fetch(remote, auth); err != nil {
		return err
	}

	remoteRef, err := p.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		return fmt.Errorf("remote branch %s/%s: %w", remote, branch, err)
	}

	if err := p.acquireWriter(context.Background()); err != nil {
		return err
	}
	defer p.releaseWriter()
	p.mu.Lock()
	defer p.mu.Unlock()

	target, err := p.repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", remote, branch, err)
	}
	if head, err := p.repo.Head(); err == nil {
		if head.Hash() == target.Hash {
			return nil
		}
		local, err := p.repo.CommitObject(head.Hash())
		if err != nil {
			return fmt.Errorf("reading HEAD: %w", err)
		}
		ahead, err := local.IsAncestor(target)
		if err != nil {
			return fmt.Errorf("comparing histories: %w", err)
		}
		if !ahead {
			return fmt.Errorf("%w: %s/%s", ErrDiverged, remote, branch)
		}
	}

	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(p.headBranch(), target.Hash)); err != nil {
		return fmt.Errorf("fast-forwarding: %w", err)
	}
	log.Storage.Info().Str("remote", remote).Str("id", target.Hash.String()).Msg("pulled")
	return nil
}
