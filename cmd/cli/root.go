package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/valleykid/growup"
	"github.com/valleykid/growup/client"
	"github.com/valleykid/growup/config"
	"github.com/valleykid/growup/core"
	"github.com/valleykid/growup/log"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	Backend    string
	Path       string
	DB         string
	Format     string // "json" | "text"
	Verbose    bool
}

var validFormats = []string{"text", "json"}

// session is the state shared by the commands of one invocation, and by
// every line of an interactive shell.
type session struct {
	opts *rootOptions

	cfg      *config.Config
	instance *growup.Instance
	client   *client.Client

	in          io.Reader
	out, errOut io.Writer
	color       bool
}

func newRootCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "growup",
		Short: "growup - versioned, indexed object stores",
		Long: `Administer and query the object stores of a growup database.

Without a subcommand an interactive shell is started.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(s.opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", s.opts.Format, validFormats)
			}
			return s.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.shell(getHistoryPath())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.opts.ConfigPath, "config", "", "YAML configuration file")
	flags.StringVar(&s.opts.Backend, "backend", "", "persistence backend (git|memory|pebble|sqlite)")
	flags.StringVar(&s.opts.Path, "path", "", "backend directory or file")
	flags.StringVar(&s.opts.DB, "db", "", "database name")
	flags.StringVar(&s.opts.Format, "format", "text", "output format (json|text)")
	flags.BoolVarP(&s.opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newStoresCommand(s),
		newAddStoreCommand(s),
		newDelStoreCommand(s),
		newHasStoreCommand(s),
		newDatabasesCommand(s),
		newDropDBCommand(s),
		newSetCommand(s),
		newGetCommand(s),
		newFindCommand(s),
		newPageCommand(s),
		newCountCommand(s),
		newDelCommand(s),
		newClearCommand(s),
		newExportCommand(s),
		newImportCommand(s),
		newHistoryCommand(s),
		newRestoreCommand(s),
		newSnapshotCommand(s),
		newRecoverCommand(s),
		newRemoteCommand(s),
		newPushCommand(s),
		newPullCommand(s),
		newShellCommand(s),
		newVersionCommand(s),
	)
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// open loads the configuration, applies flag overrides and opens the
// backend. It does nothing once the session is open.
func (s *session) open() error {
	if s.instance != nil {
		return nil
	}

	cfg, err := config.Load(s.opts.ConfigPath)
	if err != nil {
		return err
	}
	if s.opts.Backend != "" {
		cfg.Backend.Kind = s.opts.Backend
	}
	if s.opts.Path != "" {
		cfg.Backend.Path = s.opts.Path
	}
	if s.opts.DB != "" {
		cfg.Database.Name = s.opts.DB
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	level, err := log.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if s.opts.Verbose {
		level = zerolog.DebugLevel
	}
	format, err := log.ParseLoggerType(cfg.Logging.Format)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: format, Output: s.errOut})

	instance, err := growup.OpenConfig(cfg.Backend, core.Identity{
		Name:  cfg.Identity.Name,
		Email: cfg.Identity.Email,
	})
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.instance = instance
	s.use(cfg.Database.Name)
	return nil
}

// use switches the session to another database.
func (s *session) use(name string) {
	if s.client != nil {
		_ = s.client.Close()
	}
	s.cfg.Database.Name = name
	s.client = s.instance.Client(name, client.WithVersionBumpOnOpen(s.cfg.Database.VersionBumpOnOpen))
}

func (s *session) close() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	if s.instance != nil {
		_ = s.instance.Close()
		s.instance = nil
	}
}

func (s *session) s3Config() *client.S3Config {
	c := s.cfg.S3
	return &client.S3Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		UsePathStyle:    c.UsePathStyle,
	}
}

func (s *session) paint(color, text string) string {
	if !s.color {
		return text
	}
	return color + text + ResetColor
}

func (s *session) success(format string, args ...any) {
	fmt.Fprintln(s.out, s.paint(SuccessColor, "✓ "+fmt.Sprintf(format, args...)))
}

func (s *session) failure(err error) {
	fmt.Fprintln(s.out, s.paint(ErrorColor, "✗ Error: "+strings.TrimSpace(err.Error())))
}
