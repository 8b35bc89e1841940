package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
)

// errUsage marks bad command-line input; usage has already been printed.
var errUsage = errors.New("usage")

type options struct {
	configPath string
	hosts      []string
	file       string
	noColor    bool
	history    int
	show       string

	// overrides holds viper keys for flags given explicitly on the command line.
	overrides map[string]string
}

// flagKeys maps flags that override configuration onto their viper keys.
var flagKeys = map[string]string{
	"user":      "check.username",
	"pass":      "check.password",
	"port":      "check.port",
	"timeout":   "check.timeout",
	"parallel":  "batch.max_parallelism",
	"rate":      "batch.start_rate",
	"csv":       "export.csv",
	"sqlite":    "export.sqlite",
	"chart":     "export.chart",
	"metrics":   "export.metrics",
	"kafka":     "export.kafka.brokers",
	"log-level": "logging.level",
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sshcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: sshcheck [flags] [host ...]")
		fmt.Fprintln(stderr, "\nChecks SSH reachability of every host and prints a status table.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}

	opts := &options{overrides: make(map[string]string)}
	var hostList string
	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: ./sshcheck.yaml)")
	fs.StringVar(&hostList, "host", "", "Comma-separated hosts to check (manual entry)")
	fs.StringVar(&opts.file, "file", "", "Read hosts from a .csv or .txt file")
	fs.String("user", "", "SSH username; with -pass, password authentication is attempted")
	fs.String("pass", "", "SSH password")
	fs.Int("port", 22, "SSH port")
	fs.Duration("timeout", 0, "Per-phase connection timeout (default from config, 10s)")
	fs.Int("parallel", 0, "Maximum concurrent probes (default from config, 10)")
	fs.Float64("rate", 0, "Maximum probe starts per second, 0 for unlimited")
	fs.String("csv", "", "Write results as CSV to this path (\"auto\" for a timestamped name)")
	fs.String("sqlite", "", "Record the run in this SQLite database")
	fs.String("chart", "", "Write a response-time bar chart PNG to this path")
	fs.String("metrics", "", "Write Prometheus metrics to this textfile")
	fs.String("kafka", "", "Comma-separated Kafka brokers to publish results to")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.IntVar(&opts.history, "history", 0, "List the N most recent runs from the -sqlite database and exit")
	fs.StringVar(&opts.show, "show", "", "Print a stored run from the -sqlite database and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, errUsage
	}

	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			opts.overrides[key] = f.Value.String()
		}
	})

	opts.hosts = append(splitList(hostList), fs.Args()...)
	if len(opts.hosts) > 0 && opts.file != "" {
		fmt.Fprintln(stderr, "sshcheck: use either hosts or -file, not both")
		return nil, errUsage
	}
	return opts, nil
}

// apply writes explicit flag values over the loaded configuration.
func (o *options) apply(v *viper.Viper) {
	for key, val := range o.overrides {
		if key == "export.kafka.brokers" {
			v.Set(key, splitList(val))
			continue
		}
		v.Set(key, val)
	}
}

// querying reports whether the invocation reads history instead of probing.
func (o *options) querying() bool {
	return o.history > 0 || o.show != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
