package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/banshee-data/multimeter/internal/config"
)

// cliFlags holds the command-line options. Values given on the command line
// override the JSON config file.
type cliFlags struct {
	fs *flag.FlagSet

	configPath   string
	port         string
	baud         int
	channel      int
	unit         string
	query        bool
	queryCommand string
	readTimeout  time.Duration
	frameRate    float64
	logDir       string
	dbPath       string

	color     string
	noColor   bool
	echo      bool
	listen    string
	plotDir   string
	devMode   bool
	listPorts bool
	version   bool
}

func newFlags(name string, handling flag.ErrorHandling) *cliFlags {
	f := &cliFlags{fs: flag.NewFlagSet(name, handling)}
	fs := f.fs

	fs.StringVar(&f.configPath, "config", "", "Path to a JSON acquisition config (e.g. "+config.ExampleConfigPath+")")
	fs.StringVar(&f.port, "port", "", "Serial port of the instrument (ignored in dev mode)")
	fs.IntVar(&f.baud, "baud", 9600, "Serial baud rate")
	fs.IntVar(&f.channel, "channel", 1, "Channel number shown on the display and used in the log file name")
	fs.StringVar(&f.unit, "unit", "V", "Measurement unit")
	fs.BoolVar(&f.query, "query", false, "Send the query command before every read")
	fs.StringVar(&f.queryCommand, "query-command", "READ?", "Query command sent to the instrument")
	fs.DurationVar(&f.readTimeout, "read-timeout", 10*time.Millisecond, "Serial read timeout")
	fs.Float64Var(&f.frameRate, "frame-rate", 60, "Loop iterations per second (0 runs unpaced)")
	fs.StringVar(&f.logDir, "log-dir", ".", "Directory for the CSV reading log (empty disables logging)")
	fs.StringVar(&f.dbPath, "db-path", "", "SQLite reading store (empty disables the store)")

	fs.StringVar(&f.color, "color", "r", "Value colour: r, g or b")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable coloured output")
	fs.BoolVar(&f.echo, "echo", false, "Echo raw bytes read from the port")
	fs.StringVar(&f.listen, "listen", ":8080", "Dashboard listen address (empty disables the dashboard)")
	fs.StringVar(&f.plotDir, "plot-dir", "", "Write PNG plots of the run to this directory on exit")
	fs.BoolVar(&f.devMode, "dev", false, "Read from a simulated instrument instead of a serial port")
	fs.BoolVar(&f.listPorts, "list-ports", false, "List serial ports and exit")
	fs.BoolVar(&f.version, "version", false, "Print version information and exit")
	return f
}

func (f *cliFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

// resolve loads the config file, if any, and overlays the flags that were set
// explicitly. logDir is the one flag whose default also applies when neither
// source sets it.
func (f *cliFlags) resolve() (*config.AcquisitionConfig, error) {
	cfg := config.EmptyAcquisitionConfig()
	if f.configPath != "" {
		loaded, err := config.LoadAcquisitionConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if set["port"] {
		cfg.Port = &f.port
	}
	if set["baud"] {
		cfg.BaudRate = &f.baud
	}
	if set["channel"] {
		cfg.Channel = &f.channel
	}
	if set["unit"] {
		cfg.Unit = &f.unit
	}
	if set["query"] {
		cfg.Query = &f.query
	}
	if set["query-command"] {
		cfg.QueryCommand = &f.queryCommand
	}
	if set["read-timeout"] {
		d := f.readTimeout.String()
		cfg.ReadTimeout = &d
	}
	if set["frame-rate"] {
		cfg.FrameRate = &f.frameRate
	}
	if set["log-dir"] || cfg.LogDir == nil {
		cfg.LogDir = &f.logDir
	}
	if set["db-path"] {
		cfg.DBPath = &f.dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
