package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/sqlexec"
	"github.com/stephenafamo/sqlexec/config"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var errMissingStatement = errors.New("missing SQL statement")

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}

	return ""
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "sqlexec",
		Usage:     "Run parameterized SQL statements against a database",
		UsageText: "sqlexec [-c FILE] [--driver NAME] [--dsn DSN] command SQL [ARG...]",
		Version:   version(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Database driver, one of " + strings.Join(config.Drivers(), ", "),
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Data source name passed to the driver",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for statement failures",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Print every statement and its arguments to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "update",
				Usage:     "Execute an insert, update, delete or DDL statement",
				ArgsUsage: "SQL [ARG...]",
				Action:    runUpdate,
			},
			{
				Name:      "query",
				Usage:     "Execute a query and print the mapped rows",
				ArgsUsage: "SQL [ARG...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "one",
						Usage: "Require exactly one row",
					},
					&cli.StringFlag{
						Name:  "format",
						Value: "table",
						Usage: "Output `FORMAT`, json or table",
					},
					&cli.StringFlag{
						Name:  "template",
						Usage: "Print each row with a Go `TEMPLATE` (sprig functions available)",
					},
				},
				Action: runQuery,
			},
		},
	}
}

// session is an open data source and the settings templates are built with
type session struct {
	ds     sqlexec.DataSource
	logger logrus.FieldLogger
	src    config.Source
}

func (s session) template(ds sqlexec.DataSource) *sqlexec.Template {
	return sqlexec.New(ds, sqlexec.WithLogger(s.logger))
}

func (s session) Close() error {
	return s.src.Close()
}

func open(c *cli.Context) (session, error) {
	overrides := map[string]any{}
	for flag, key := range map[string]string{
		"driver":    "driver",
		"dsn":       "dsn",
		"log-level": "log_level",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("debug") {
		overrides["debug"] = c.Bool("debug")
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return session{}, err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return session{}, err
	}
	logger.SetOutput(c.App.ErrWriter)

	src, err := config.Connect(c.Context, cfg)
	if err != nil {
		return session{}, err
	}

	var ds sqlexec.DataSource = src
	if cfg.Debug {
		ds = sqlexec.DebugToWriter(src, c.App.ErrWriter)
	}

	return session{
		ds:     ds,
		logger: logger,
		src:    src,
	}, nil
}

// statement splits the positional arguments into the SQL text and its
// bind arguments
func statement(c *cli.Context) (string, []any, error) {
	if c.NArg() == 0 {
		return "", nil, errMissingStatement
	}

	rest := c.Args().Tail()
	args := make([]any, len(rest))
	for i, a := range rest {
		args[i] = a
	}

	return c.Args().First(), args, nil
}

func runUpdate(c *cli.Context) error {
	query, args, err := statement(c)
	if err != nil {
		return err
	}

	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.Close()

	affected, err := s.template(s.ds).Update(c.Context, query, args...)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%d row(s) affected\n", affected)
	return nil
}

func runQuery(c *cli.Context) error {
	query, args, err := statement(c)
	if err != nil {
		return err
	}

	out, err := newPrinter(c.String("format"), c.String("template"))
	if err != nil {
		return err
	}

	s, err := open(c)
	if err != nil {
		return err
	}
	defer s.Close()

	header := &columnRecorder{}
	tpl := s.template(header.wrap(s.ds))

	if c.Bool("one") {
		row, err := sqlexec.QueryForObject(c.Context, tpl, query, sqlexec.MapRow, args...)
		if err != nil {
			return err
		}
		return out.printOne(c.App.Writer, header.columns, row)
	}

	rows, err := sqlexec.Query(c.Context, tpl, query, sqlexec.MapRow, args...)
	if err != nil {
		return err
	}

	return out.printAll(c.App.Writer, header.columns, rows)
}
