package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/bsm/reltable"
	"github.com/bsm/reltable/kvstore"
	"github.com/rs/zerolog"
)

type args struct {
	DB      string `arg:"--db,env:RELTABLE_DB" default:"reltable.db" help:"path to the store"`
	Backend string `arg:"--backend,env:RELTABLE_BACKEND" default:"leveldb" help:"store backend, leveldb or badger"`
	Pretty  bool   `arg:"--pretty,env:PRETTY" help:"human-readable logs"`
	Debug   bool   `arg:"--debug,env:DEBUG" help:"enable debug logs"`

	Tables  *tablesCmd  `arg:"subcommand:tables" help:"list tables"`
	Columns *columnsCmd `arg:"subcommand:columns" help:"show the columns of a table"`
	Rows    *rowsCmd    `arg:"subcommand:rows" help:"print the rows of a table"`
	Dump    *dumpCmd    `arg:"subcommand:dump" help:"write a snapshot of the store"`
	Restore *restoreCmd `arg:"subcommand:restore" help:"load a snapshot into the store"`
}

type tablesCmd struct {
	Dropped bool   `arg:"--dropped" help:"list dropped tables"`
	Owner   string `arg:"--owner" help:"only tables owned by this hex principal"`
	Prefix  string `arg:"positional" help:"name prefix"`
}

type columnsCmd struct {
	Table string `arg:"positional,required"`
}

type rowsCmd struct {
	Table string `arg:"positional,required"`
	Limit int    `arg:"--limit" help:"stop after this many rows"`
}

type dumpCmd struct {
	File string `arg:"positional,required"`
}

type restoreCmd struct {
	File string `arg:"positional,required"`
}

func main() {
	if err := mainErr(); err != nil {
		log.Printf("error in main: %v", err)
		os.Exit(1)
	}
}

func mainErr() error {
	var a args
	p := arg.MustParse(&a)
	if p.Subcommand() == nil {
		p.Fail("expected subcommand")
	}

	logger := newLogger(os.Stderr, a.Pretty, a.Debug)
	return run(&a, os.Stdout, logger)
}

func run(a *args, w io.Writer, logger zerolog.Logger) error {
	store, err := openStore(a.Backend, a.DB)
	if err != nil {
		return err
	}

	if a.Restore != nil {
		if err := kvstore.RestoreFile(store, a.Restore.File); err != nil {
			_ = store.Close()
			return fmt.Errorf("restoring %s: %w", a.Restore.File, err)
		}
	}

	engine, err := reltable.Open(store, &reltable.Options{Logger: &logger})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("opening engine: %w", err)
	}
	defer engine.Close()

	switch {
	case a.Tables != nil:
		return listTables(engine, a.Tables, w)
	case a.Columns != nil:
		return listColumns(engine, a.Columns.Table, w)
	case a.Rows != nil:
		return listRows(engine, a.Rows, w)
	case a.Dump != nil:
		return dump(engine, a.Dump.File, logger)
	case a.Restore != nil:
		logger.Info().
			Str("file", a.Restore.File).
			Int("tables", len(engine.ListAllTables())).
			Msg("restored snapshot")
		return nil
	}
	return fmt.Errorf("expected subcommand")
}

func openStore(backend, path string) (kvstore.Store, error) {
	switch backend {
	case "leveldb":
		return kvstore.OpenLevelStore(path, nil)
	case "badger":
		return kvstore.OpenBadgerStore(path)
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func newLogger(w io.Writer, pretty, debug bool) zerolog.Logger {
	zerolog.TimestampFieldName = "time"

	logger := zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	if pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w})
	}
	if debug {
		logger = logger.Level(zerolog.DebugLevel)
	}
	return logger
}
