// Command xetra-etl runs the daily Xetra aggregation from the command line.
//
// Usage:
//
//	xetra-etl run [-date 2021-04-19]
//	xetra-etl backfill -from 2021-04-12 [-single-day]
//	xetra-etl rebuild-meta
//	xetra-etl remote -addr localhost:9090 [-date 2021-04-19]
//	xetra-etl version
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"xetra/internal/config"
	"xetra/internal/domain"
	"xetra/internal/etl"
	"xetra/internal/rpc"
	"xetra/internal/util"
	"xetra/internal/version"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: xetra-etl <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run           Process one business date (default: source.input_date)\n")
		fmt.Fprintf(os.Stderr, "  backfill      Process every weekday from a start date through today\n")
		fmt.Fprintf(os.Stderr, "  rebuild-meta  Rewrite the meta file from the existing outputs\n")
		fmt.Fprintf(os.Stderr, "  remote        Ask a running xetra-server to process a date over gRPC\n")
		fmt.Fprintf(os.Stderr, "  version       Print the version\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runCmd(ctx, args)
	case "backfill":
		err = backfillCmd(ctx, args)
	case "rebuild-meta":
		err = rebuildMetaCmd(ctx)
	case "remote":
		err = remoteCmd(ctx, args)
	case "version":
		fmt.Printf("xetra-etl %s\n", version.String())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// setup loads the configuration and opens the stores behind a Runner.
func setup() (*config.Config, *etl.Runner, func(), error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	pc, err := cfg.Pipeline()
	if err != nil {
		return nil, nil, nil, err
	}
	stores, err := cfg.OpenStores()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening stores: %w", err)
	}

	var opts []etl.Option
	if cfg.Storage.MetaKey != "" {
		opts = append(opts, etl.WithMetaKey(cfg.Storage.MetaKey))
	}
	runner := etl.NewRunner(stores.Source, stores.Target, pc, logger, opts...)
	cleanup := func() {
		if err := stores.Close(); err != nil {
			logger.Error("closing stores", "error", err)
		}
	}
	return cfg, runner, cleanup, nil
}

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	date := fs.String("date", "", "business date in the source date format")
	fs.Parse(args)

	_, runner, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := runner.Run(ctx, *date)
	if err != nil {
		return err
	}
	printRows(rows)
	return nil
}

func backfillCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	from := fs.String("from", "", "first business date (default: source.input_date)")
	singleDay := fs.Bool("single-day", false, "only process the trading window of -from")
	fs.Parse(args)

	cfg, runner, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	start := *from
	if start == "" {
		start = cfg.Source.InputDate
	}
	dates, err := util.ListDates(start, cfg.Source.InputDateFormat, *singleDay, time.Now())
	if err != nil {
		return err
	}

	outcomes, err := runner.Backfill(ctx, dates)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tROWS\tCACHED")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%d\t%v\n", o.Date, o.Rows, o.CacheHit)
	}
	w.Flush()
	return err
}

func rebuildMetaCmd(ctx context.Context) error {
	_, runner, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	return runner.RebuildMeta(ctx)
}

func remoteCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	addr := fs.String("addr", "localhost:9090", "xetra-server gRPC address")
	date := fs.String("date", "", "business date (default: the server's input date)")
	timeout := fs.Duration("timeout", 5*time.Minute, "request timeout")
	fs.Parse(args)

	c, err := rpc.NewClient(*addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	resp, err := c.Run(ctx, *date)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ISIN\tDATE\tOPEN\tCLOSE\tMIN\tMAX\tVOLUME\tCHANGE%")
	for _, r := range resp.Rows {
		pct := ""
		if r.ChangePrevPct != nil {
			pct = *r.ChangePrevPct
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ISIN, r.Date, r.OpeningPrice, r.ClosingPrice, r.MinPrice, r.MaxPrice, r.TradedVolume, pct)
	}
	return w.Flush()
}

func printRows(rows []domain.SummaryRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ISIN\tDATE\tOPEN\tCLOSE\tMIN\tMAX\tVOLUME\tCHANGE%")
	for _, r := range rows {
		pct := ""
		if r.ChangePrevPct.Valid {
			pct = r.ChangePrevPct.Decimal.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ISIN, r.Date,
			r.OpeningPrice.StringFixed(2), r.ClosingPrice.StringFixed(2),
			r.MinPrice.StringFixed(2), r.MaxPrice.StringFixed(2),
			r.TradedVolume, pct)
	}
	w.Flush()
}
