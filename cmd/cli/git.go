package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/valleykid/growup/ps"
)

var errNotGit = errors.New("this command needs the git or memory backend")

func (s *session) git() (*ps.Persistence, error) {
	p, ok := s.instance.Git()
	if !ok {
		return nil, errNotGit
	}
	return p, nil
}

func newHistoryCommand(s *session) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List committed transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}

			var txs []ps.Transaction
			if since > 0 {
				txs = p.TransactionsSince(time.Now().Add(-since))
			} else if latest := p.LatestTransaction(); !latest.IsZero() {
				txs = p.TransactionsFrom(latest.Id)
			}

			if s.json() {
				return s.printJSON(txs)
			}
			if len(txs) == 0 {
				fmt.Fprintln(s.out, "(no transactions)")
				return nil
			}
			t := &table{headers: []string{"id", "when", "author"}}
			for _, tx := range txs {
				t.row(tx.Id, tx.When.Format(time.RFC3339), tx.Author)
			}
			t.render(s.out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only transactions newer than this (e.g. 24h)")
	return cmd
}

func newRestoreCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <transaction-id>",
		Short: "Move the repository back to a committed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}
			// The held connection describes the current schema.
			if err := s.client.Close(); err != nil {
				return err
			}
			if err := p.Restore(ps.Transaction{Id: args[0]}); err != nil {
				return err
			}
			s.success("restored to %s", args[0])
			return nil
		},
	}
}

func newSnapshotCommand(s *session) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "snapshot <name>",
		Short: "Tag the latest transaction, or the one given by --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}
			var asof *ps.Transaction
			if at != "" {
				asof = &ps.Transaction{Id: at}
			}
			if err := p.Snapshot(args[0], asof); err != nil {
				return err
			}
			s.success("snapshot %s created", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "transaction id to tag")
	return cmd
}

func newRecoverCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <name>",
		Short: "Move the repository back to a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}
			if err := s.client.Close(); err != nil {
				return err
			}
			if err := p.Recover(args[0]); err != nil {
				return err
			}
			s.success("recovered snapshot %s", args[0])
			return nil
		},
	}
}

func newRemoteCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage the git remotes the repository syncs with",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name> <url>",
			Short: "Add a remote",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := s.git()
				if err != nil {
					return err
				}
				if err := p.AddRemote(args[0], args[1]); err != nil {
					return err
				}
				s.success("remote %s added", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List remotes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := s.git()
				if err != nil {
					return err
				}
				remotes, err := p.ListRemotes()
				if err != nil {
					return err
				}
				if s.json() {
					return s.printJSON(remotes)
				}
				if len(remotes) == 0 {
					fmt.Fprintln(s.out, "(none)")
					return nil
				}
				t := &table{headers: []string{"name", "url"}}
				for _, r := range remotes {
					for _, url := range r.URLs {
						t.row(r.Name, url)
					}
				}
				t.render(s.out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Remove a remote",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := s.git()
				if err != nil {
					return err
				}
				if err := p.RemoveRemote(args[0]); err != nil {
					return err
				}
				s.success("remote %s removed", args[0])
				return nil
			},
		},
	)
	return cmd
}

// authOptions are the credential flags of push and pull.
type authOptions struct {
	branch     string
	token      string
	sshKey     string
	passphrase string
	username   string
	password   string
}

func (o *authOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.branch, "branch", "", "branch to sync (default current)")
	cmd.Flags().StringVar(&o.token, "token", "", "access token")
	cmd.Flags().StringVar(&o.sshKey, "ssh-key", "", "SSH private key file")
	cmd.Flags().StringVar(&o.passphrase, "passphrase", "", "SSH key passphrase")
	cmd.Flags().StringVar(&o.username, "username", "", "basic auth user")
	cmd.Flags().StringVar(&o.password, "password", "", "basic auth password")
}

func (o *authOptions) auth() *ps.RemoteAuth {
	switch {
	case o.token != "":
		return &ps.RemoteAuth{Type: ps.AuthTypeToken, Token: o.token}
	case o.sshKey != "":
		return &ps.RemoteAuth{Type: ps.AuthTypeSSH, KeyPath: o.sshKey, Passphrase: o.passphrase}
	case o.username != "":
		return &ps.RemoteAuth{Type: ps.AuthTypeBasic, Username: o.username, Password: o.password}
	default:
		return nil
	}
}

func remoteArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "origin"
}

func newPushCommand(s *session) *cobra.Command {
	opts := &authOptions{}

	cmd := &cobra.Command{
		Use:   "push [remote]",
		Short: "Push committed transactions to a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}
			remote := remoteArg(args)
			if err := p.Push(remote, opts.branch, opts.auth()); err != nil {
				return err
			}
			s.success("pushed to %s", remote)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func newPullCommand(s *session) *cobra.Command {
	opts := &authOptions{}

	cmd := &cobra.Command{
		Use:   "pull [remote]",
		Short: "Fast-forward to the transactions of a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := s.git()
			if err != nil {
				return err
			}
			// Pulled transactions may change the schema under the held
			// connection.
			if err := s.client.Close(); err != nil {
				return err
			}
			remote := remoteArg(args)
			if err := p.Pull(remote, opts.branch, opts.auth()); err != nil {
				return err
			}
			s.success("pulled from %s", remote)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func newVersionCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(s.out, "growup version %s\n", Version)
			return nil
		},
	}
}
