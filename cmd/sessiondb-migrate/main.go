package main

import (
	"context"
	"fmt"
	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/sessiondb/sessiondb/internal"
	"github.com/sessiondb/sessiondb/pkg/database"
	"github.com/sessiondb/sessiondb/pkg/driver"
	"github.com/sessiondb/sessiondb/pkg/legacy"
	"github.com/sessiondb/sessiondb/pkg/logging"
	"github.com/sessiondb/sessiondb/pkg/utils"
	"github.com/vbauerster/mpb/v6"
	"github.com/vbauerster/mpb/v6/decor"
	"go.uber.org/zap"
	"os"
)

// Flags are the global command line options shared by all subcommands.
type Flags struct {
	Config  string `short:"c" long:"config" description:"path to an optional YAML config file"`
	Version bool   `short:"V" long:"version" description:"print version and exit"`
}

// Config is the optional YAML configuration,
// tuning knobs the target URL can't express.
type Config struct {
	Database struct {
		Options database.Options `yaml:"options"`
	} `yaml:"database"`
	Logging logging.Config `yaml:"logging"`
}

// loadConfig returns the Config from the YAML file at path,
// or the defaults if path is empty.
func loadConfig(path string) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "can't set config defaults")
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "can't open config file")
		}
		defer func() { _ = f.Close() }()

		if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(c); err != nil {
			return nil, errors.Wrap(err, "can't parse config file")
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := c.Database.Options.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// setup opens the target database and builds the import machinery
// every subcommand needs.
func setup(configPath, targetUrl string) (*database.DB, *legacy.Importer, *logging.Logging, error) {
	c, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logs, err := logging.NewLoggingFromConfig("sessiondb-migrate", c.Logging)
	if err != nil {
		return nil, nil, nil, err
	}

	dbConfig, err := database.ParseURL(targetUrl)
	if err != nil {
		return nil, nil, nil, err
	}
	dbConfig.Options = c.Database.Options

	driver.Register(logs.GetChildLogger("database-driver"))

	db, err := database.NewDbFromConfig(dbConfig, logs.GetChildLogger("database"))
	if err != nil {
		return nil, nil, nil, err
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, nil, nil, errors.Wrap(err, "can't connect to target database")
	}

	return db, legacy.NewImporter(db, logs.GetChildLogger("import")), logs, nil
}

// oneCommand imports a single legacy session file.
type oneCommand struct {
	flags *Flags

	SessionName string `short:"s" long:"session-name" description:"session name to import under (defaults to the file name without .session)"`

	Args struct {
		File      string `positional-arg-name:"FILE" description:"legacy .session file"`
		TargetUrl string `positional-arg-name:"TARGET-URL" description:"target database URL"`
	} `positional-args:"yes" required:"yes"`
}

// Execute implements the flags.Commander interface.
func (cmd *oneCommand) Execute(_ []string) error {
	db, importer, logs, err := setup(cmd.flags.Config, cmd.Args.TargetUrl)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger := logs.GetLogger()
	defer func() { _ = logger.Sync() }()

	res := importer.ImportFile(context.Background(), cmd.Args.File, cmd.SessionName)
	if res.Failed() {
		return errors.Wrapf(res.Err, "can't import %q", res.File)
	}

	logger.Infow("Imported legacy session file",
		zap.String("file", res.File),
		zap.String("session", res.SessionName),
		zap.Int("entities", res.Entities),
		zap.Int("update_states", res.UpdateStates),
		zap.Int("sent_files", res.SentFiles))

	return nil
}

// dirCommand imports every .session file of a directory.
type dirCommand struct {
	flags *Flags

	NoProgress bool `long:"no-progress" description:"don't render a progress bar"`

	Args struct {
		Directory string `positional-arg-name:"DIRECTORY" description:"directory holding legacy .session files"`
		TargetUrl string `positional-arg-name:"TARGET-URL" description:"target database URL"`
	} `positional-args:"yes" required:"yes"`
}

// Execute implements the flags.Commander interface.
func (cmd *dirCommand) Execute(_ []string) error {
	db, importer, logs, err := setup(cmd.flags.Config, cmd.Args.TargetUrl)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger := logs.GetLogger().With(zap.String("run_id", uuid.NewString()))
	defer func() { _ = logger.Sync() }()

	files, err := legacy.ListSessionFiles(cmd.Args.Directory)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warnw("No legacy session files found", zap.String("directory", cmd.Args.Directory))
		return nil
	}

	onFile := func(legacy.Result) {}
	if !cmd.NoProgress {
		progress := mpb.New(mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("importing "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
		onFile = func(legacy.Result) { bar.Increment() }
		defer progress.Wait()
	}

	results := importer.ImportFiles(context.Background(), files, onFile)

	var failed int
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}

	logger.Infow("Finished batch import",
		zap.Int("files", len(results)),
		zap.Int("imported", len(results)-failed),
		zap.Int("failed", failed))

	if failed == len(results) {
		return errors.Errorf("all %d legacy session files failed to import", failed)
	}

	return nil
}

func main() {
	f := &Flags{}

	parser := flags.NewParser(f, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.AddCommand(
		"one", "Import a single session file",
		"Import one legacy .session file into the target database.",
		&oneCommand{flags: f},
	); err != nil {
		utils.PrintErrorThenExit(err, 2)
	}

	if _, err := parser.AddCommand(
		"dir", "Import a directory of session files",
		"Import every .session file of a directory into the target database. "+
			"A failing file doesn't stop the batch.",
		&dirCommand{flags: f},
	); err != nil {
		utils.PrintErrorThenExit(err, 2)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}

		utils.PrintErrorThenExit(err, 2)
	}

	if f.Version {
		internal.Version.Print(utils.AppName())
		return
	}

	if parser.Active == nil {
		fmt.Fprintln(os.Stderr, "one of the commands \"one\" or \"dir\" is required")
		parser.WriteHelp(os.Stderr)
		os.Exit(2)
	}
}
