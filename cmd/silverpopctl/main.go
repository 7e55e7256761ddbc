package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jpitassi/silverpop"
	"github.com/jpitassi/silverpop/internal/logging"
	"github.com/jpitassi/silverpop/markup"
	"github.com/jpitassi/silverpop/session"
	"github.com/jpitassi/silverpop/transport"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	callsPath   string
	function    string
	payloadPath string
	raw         string
	endpoint    string
	username    string
	showFaults  bool
	showLog     bool
	dryRun      bool
	noColor     bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "silverpopctl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("silverpopctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "silverpop.toml", "path to the TOML config file")
	flagSet.StringVar(&opts.callsPath, "calls", "", "YAML file listing calls to batch")
	flagSet.StringVarP(&opts.function, "function", "f", "", "single API function to call")
	flagSet.StringVar(&opts.payloadPath, "payload", "", "YAML payload file for --function")
	flagSet.StringVar(&opts.raw, "raw", "", "raw markup payload for --function")
	flagSet.StringVar(&opts.endpoint, "endpoint", "", "override the configured endpoint")
	flagSet.StringVar(&opts.username, "username", "", "override the configured username")
	flagSet.BoolVar(&opts.showFaults, "faults", false, "print the fault log after the response")
	flagSet.BoolVar(&opts.showLog, "session-log", false, "print the transaction log after the response")
	flagSet.BoolVar(&opts.dryRun, "dry-run", false, "print the request envelope without connecting")
	flagSet.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  silverpopctl [flags]\n\nSend one batched request to the XML API and print the raw response.\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.callsPath == "" && opts.function == "" {
		return options{}, fmt.Errorf("one of --calls or --function is required")
	}
	if opts.payloadPath != "" && opts.raw != "" {
		return options{}, fmt.Errorf("--payload and --raw are mutually exclusive")
	}
	if opts.function == "" && (opts.payloadPath != "" || opts.raw != "") {
		return options{}, fmt.Errorf("--payload and --raw require --function")
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logging.ConfigureRuntime()

	color.NoColor = opts.noColor || !isTerminal(stdout)

	calls, err := collectCalls(opts)
	if err != nil {
		return err
	}

	if opts.dryRun {
		doc, err := markup.BuildEnvelope(calls)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, doc)
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.endpoint != "" {
		cfg.Session.Endpoint = opts.endpoint
	}
	if opts.username != "" {
		cfg.Session.Username = opts.username
	}
	if opts.showFaults {
		cfg.Session.LogFaults = true
	}
	if opts.showLog {
		cfg.Session.LogTransactions = true
	}
	httpTransport, err := transport.NewHTTP(cfg.Transport)
	if err != nil {
		return err
	}
	cfg.Session.Transport = httpTransport

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := silverpop.New(ctx, cfg.Session)
	if err != nil {
		var connErr *session.ConnectionError
		if errors.As(err, &connErr) && connErr.Fault != nil {
			fmt.Fprintln(stderr, color.RedString("login fault %s", connErr.Fault))
		}
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logging.Warnf("silverpopctl logout err=%v", err)
		}
	}()

	for _, call := range calls {
		client.Build(call.Function, call.Payload, false)
	}
	resp, err := client.Execute(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, resp)

	faults := markup.FindFaults(resp)
	if len(faults) == 0 {
		fmt.Fprintln(stderr, color.GreenString("ok calls=%d", len(calls)))
	} else {
		fmt.Fprintln(stderr, color.RedString("faults=%d calls=%d", len(faults), len(calls)))
	}
	if opts.showFaults {
		printFaultLog(stderr, client.FaultLog())
	}
	if opts.showLog {
		printSessionLog(stderr, client.SessionLog())
	}
	return nil
}

func collectCalls(opts options) ([]markup.Call, error) {
	var calls []markup.Call
	if opts.callsPath != "" {
		loaded, err := loadCalls(opts.callsPath)
		if err != nil {
			return nil, err
		}
		calls = append(calls, loaded...)
	}
	if opts.function != "" {
		var payload markup.Payload = markup.Sequence{}
		switch {
		case opts.raw != "":
			payload = markup.Raw(opts.raw)
		case opts.payloadPath != "":
			node, err := loadPayload(opts.payloadPath)
			if err != nil {
				return nil, err
			}
			payload = node
		}
		calls = append(calls, markup.Call{Function: strings.TrimSpace(opts.function), Payload: payload})
	}
	return calls, nil
}

func printFaultLog(w io.Writer, faults []string) {
	for i, f := range faults {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("fault[%d]", i), f)
	}
}

func printSessionLog(w io.Writer, entries []session.LogEntry) {
	for i, e := range entries {
		fmt.Fprintf(w, "%s at=%s took=%.3fs request_bytes=%d response_bytes=%d\n",
			color.CyanString("exchange[%d]", i), e.Time.Format(time.RFC3339),
			e.DurationSeconds(), len(e.Request), len(e.Response))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
