package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valleykid/growup/client"
	"github.com/valleykid/growup/core"
)

// rangeOptions are the flags selecting a key range and walk order.
type rangeOptions struct {
	index     string
	start     string
	end       string
	direction string
}

func (o *rangeOptions) bind(cmd *cobra.Command, withIndex bool) {
	if withIndex {
		cmd.Flags().StringVar(&o.index, "index", "", "index to walk instead of the primary key")
		cmd.Flags().StringVar(&o.direction, "direction", "next", "walk order (next|nextunique|prev|prevunique)")
	}
	cmd.Flags().StringVar(&o.start, "start", "", "range start (JSON)")
	cmd.Flags().StringVar(&o.end, "end", "", "range end (JSON); true or false makes --start an upper or lower bound")
}

func newSetCommand(s *session) *cobra.Command {
	var (
		key      string
		noSpread bool
	)

	cmd := &cobra.Command{
		Use:   "set <store> <value>",
		Short: "Upsert a record, or one record per element of a JSON array",
		Long: `Upsert value, given as JSON, into store.

For stores with out-of-line keys --key names the record field holding the
key, or is the key itself; without it a key is generated.

Example:
  growup set users '[{"name":"a"},{"name":"b"}]'
  growup set settings '{"id":"theme","dark":true}' --key id`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []client.SetOption
			if noSpread {
				opts = append(opts, client.WithoutSpread())
			}
			keys, err := s.client.Set(cmd.Context(), args[0], parseValue(args[1]), parseValue(key), opts...)
			if err != nil {
				return err
			}
			return s.printJSON(keys)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "key, or the field holding it (JSON)")
	cmd.Flags().BoolVar(&noSpread, "no-spread", false, "store an array as one record")
	return cmd
}

func newGetCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get <store> <key>",
		Short: "Print the record stored under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, found, err := s.client.Get(cmd.Context(), args[0], parseValue(args[1]))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no record in %s under key %s", args[0], args[1])
			}
			return s.printValue(v)
		},
	}
}

func newFindCommand(s *session) *cobra.Command {
	opts := &rangeOptions{}

	cmd := &cobra.Command{
		Use:   "find <store>",
		Short: "Print every record in a key range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := s.client.Find(cmd.Context(), args[0], opts.index,
				parseValue(opts.start), parseValue(opts.end), core.Direction(opts.direction))
			if err != nil {
				return err
			}
			return s.printRecords(list)
		},
	}
	opts.bind(cmd, true)
	return cmd
}

func newPageCommand(s *session) *cobra.Command {
	opts := &rangeOptions{}
	var page, num int

	cmd := &cobra.Command{
		Use:   "page <store>",
		Short: "Print one page of a key range with the range size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := client.PageQuery{
				Store:     args[0],
				Index:     opts.index,
				Start:     parseValue(opts.start),
				End:       parseValue(opts.end),
				Page:      page,
				Num:       num,
				Direction: core.Direction(opts.direction),
			}
			p, err := s.client.FindPage(cmd.Context(), q)
			if err != nil {
				return err
			}
			return s.printPage(q, p)
		},
	}
	opts.bind(cmd, true)
	cmd.Flags().IntVar(&page, "page", client.DefaultPage, "page number, from 1")
	cmd.Flags().IntVar(&num, "num", client.DefaultNum, "records per page")
	return cmd
}

func newCountCommand(s *session) *cobra.Command {
	opts := &rangeOptions{}

	cmd := &cobra.Command{
		Use:   "count <store>",
		Short: "Count the records in a key range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := s.client.Count(cmd.Context(), args[0], parseValue(opts.start), parseValue(opts.end))
			if err != nil {
				return err
			}
			return s.printJSON(n)
		},
	}
	opts.bind(cmd, false)
	return cmd
}

func newDelCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "del <store> <key> [end]",
		Short: "Delete the record under key, or every record in a range",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var end any
			if len(args) == 3 {
				end = parseValue(args[2])
			}
			if err := s.client.Del(cmd.Context(), args[0], parseValue(args[1]), end); err != nil {
				return err
			}
			s.success("deleted")
			return nil
		},
	}
}

func newClearCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <store>",
		Short: "Delete every record of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.client.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			s.success("store %s cleared", args[0])
			return nil
		},
	}
}

func newExportCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "export <store> <url>",
		Short: "Write a store as JSON lines to a file or s3:// URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := s.client.Export(cmd.Context(), args[0], args[1], s.s3Config())
			if err != nil {
				return err
			}
			s.success("exported %d record(s)", n)
			return nil
		},
	}
}

func newImportCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "import <store> <url>",
		Short: "Upsert JSON lines from a file, http(s):// or s3:// URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := s.client.Import(cmd.Context(), args[0], args[1], s.s3Config())
			if err != nil {
				return err
			}
			s.success("imported %d record(s)", n)
			return nil
		},
	}
}
