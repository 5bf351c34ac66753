package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valleykid/growup/client"
)

func newStoresCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List the stores of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := s.client.StoreNames(cmd.Context())
			if err != nil {
				return err
			}
			return s.printList(names)
		},
	}
}

type addStoreOptions struct {
	indexes []string
	unique  []string
	keyPath string
	replace bool
}

func newAddStoreCommand(s *session) *cobra.Command {
	opts := &addStoreOptions{}

	cmd := &cobra.Command{
		Use:   "add-store <store>",
		Short: "Create a store and its indexes",
		Long: `Create a store with one index per --index or --unique field.

Stores without --key-path take out-of-line keys and generate them when none
is given. Adding a store that exists does nothing unless --replace is set.

Example:
  growup add-store users --index name --unique email`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes := map[string]bool{}
			for _, f := range opts.indexes {
				indexes[f] = false
			}
			for _, f := range opts.unique {
				indexes[f] = true
			}

			var storeOpts []client.StoreOption
			if opts.keyPath != "" {
				storeOpts = append(storeOpts, client.WithKeyPath(opts.keyPath))
			}
			if opts.replace {
				storeOpts = append(storeOpts, client.WithReplace())
			}
			if err := s.client.AddStore(cmd.Context(), args[0], indexes, storeOpts...); err != nil {
				return err
			}
			s.success("store %s ready (version %d)", args[0], s.client.Version())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.indexes, "index", nil, "field to index")
	cmd.Flags().StringSliceVar(&opts.unique, "unique", nil, "field to index uniquely")
	cmd.Flags().StringVar(&opts.keyPath, "key-path", "", "record field holding the key")
	cmd.Flags().BoolVar(&opts.replace, "replace", false, "drop and recreate an existing store")
	return cmd
}

func newDelStoreCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "del-store <store>",
		Short: "Drop a store with all its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.DelStore(cmd.Context(), args[0]); err != nil {
				return err
			}
			s.success("store %s dropped", args[0])
			return nil
		},
	}
}

func newHasStoreCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "has-store <store>",
		Short: "Report whether a store exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := s.client.HasStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return s.printJSON(ok)
		},
	}
}

func newDatabasesCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:     "databases",
		Aliases: []string{"dbs"},
		Short:   "List databases and their versions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.showDatabases(cmd)
		},
	}
}

func (s *session) showDatabases(cmd *cobra.Command) error {
	dbs, err := s.instance.Factory().Databases(cmd.Context())
	if err != nil {
		return err
	}
	if s.json() {
		return s.printJSON(dbs)
	}
	if len(dbs) == 0 {
		fmt.Fprintln(s.out, "(none)")
		return nil
	}
	t := &table{headers: []string{"name", "version"}}
	for _, d := range dbs {
		t.row(d.Name, fmt.Sprint(d.Version))
	}
	t.render(s.out)
	return nil
}

func newDropDBCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "drop-db",
		Short: "Delete the database with all its stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.DeleteDatabase(cmd.Context()); err != nil {
				return err
			}
			s.success("database %s deleted", s.client.Name())
			return nil
		},
	}
}
