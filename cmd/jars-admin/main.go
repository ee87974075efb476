// jars-admin runs maintenance operations against the ledger store: jar
// inspection, manual period resets, the scheduled rollover and outbox
// housekeeping. It reads the same environment as the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"sixjars/internal/cli"
	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
	"sixjars/internal/services"
)

const usage = `usage: jars-admin [flags] <command> [args]

commands:
  init <user>          create the six zeroed jars for a user
  jars <user>          print a user's jar balances
  reset <user>         archive and zero a user's jars now
  roll                 reset every user whose period has ended
  stats <user>         print income, expenses and savings
  outbox               print outbox counters
  retry-failed         return failed outbox events to pending

flags:
`

type admin struct {
	out   io.Writer
	svc   *cli.Services
	store ledger.Store
	json  bool

	window  string
	month   int
	year    int
	cadence string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a := &admin{out: os.Stdout}

	flagSet := pflag.NewFlagSet("jars-admin", pflag.ContinueOnError)
	flagSet.BoolVar(&a.json, "json", false, "print JSON instead of a table")
	flagSet.StringVar(&a.window, "window", "month", "stats window: month, year or lifetime")
	flagSet.IntVar(&a.month, "month", 0, "stats month (default: current)")
	flagSet.IntVar(&a.year, "year", 0, "stats year (default: current)")
	flagSet.StringVar(&a.cadence, "cadence", "", "rollover cadence for roll (default: PERIOD_RESET_CADENCE)")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger("admin")
	cfg := cli.LoadAndValidateConfig(logger)
	if a.cadence == "" {
		a.cadence = cfg.PeriodResetCadence
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err.Error())
		}
	}()
	svc, err := cli.NewServices(store, cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()
	a.svc, a.store = svc, store

	return a.dispatch(ctx, args[0], args[1:])
}

func (a *admin) dispatch(ctx context.Context, cmd string, args []string) error {
	withUser := func(fn func(context.Context, string) error) error {
		if len(args) != 1 {
			return fmt.Errorf("%s requires exactly one user id", cmd)
		}
		return fn(ctx, args[0])
	}

	switch cmd {
	case "init":
		return withUser(a.initJars)
	case "jars":
		return withUser(a.printJars)
	case "reset":
		return withUser(a.reset)
	case "stats":
		return withUser(a.stats)
	case "roll":
		return a.roll(ctx)
	case "outbox":
		return a.outboxStats(ctx)
	case "retry-failed":
		return a.retryFailed(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *admin) initJars(ctx context.Context, userID string) error {
	if err := a.svc.Jars.Initialize(ctx, userID); err != nil {
		return err
	}
	return a.printJars(ctx, userID)
}

func (a *admin) printJars(ctx context.Context, userID string) error {
	jars, err := a.svc.Jars.List(ctx, userID)
	if err != nil {
		return err
	}
	if a.json {
		return a.encode(jars)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "JAR\tALLOCATED\tSPENT\tBALANCE\tSINCE\t")
	var total core.JarState
	for _, j := range jars {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", j.Code, j.Allocated, j.Spent, j.Balance,
			j.PeriodStartedAt.In(a.svc.Env.Location).Format("2006-01-02"))
		total.Allocated += j.Allocated
		total.Spent += j.Spent
		total.Balance += j.Balance
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t\t\n", total.Allocated, total.Spent, total.Balance)
	return tw.Flush()
}

func (a *admin) reset(ctx context.Context, userID string) error {
	periods, err := a.svc.Jars.ResetPeriod(ctx, userID)
	if err != nil {
		return err
	}
	if a.json {
		return a.encode(periods)
	}
	fmt.Fprintf(a.out, "archived %d jar periods for %s\n", len(periods), userID)
	return nil
}

func (a *admin) roll(ctx context.Context) error {
	roller, err := services.NewPeriodRoller(a.svc.Env, a.svc.Jars, services.Cadence(a.cadence))
	if err != nil {
		return err
	}
	n, err := roller.RollAll(ctx)
	fmt.Fprintf(a.out, "rolled %d users\n", n)
	return err
}

func (a *admin) stats(ctx context.Context, userID string) error {
	kind, err := core.ParseWindowKind(a.window)
	if err != nil {
		return err
	}
	s, err := a.svc.Stats.Stats(ctx, userID, kind, a.month, a.year)
	if err != nil {
		return err
	}
	if a.json {
		return a.encode(s)
	}
	fmt.Fprintf(a.out, "income:   %s\nexpenses: %s\nsavings:  %s\n", s.Income, s.Expenses, s.Savings)
	return nil
}

func (a *admin) outboxStats(ctx context.Context) error {
	s, err := a.store.OutboxStats(ctx)
	if err != nil {
		return err
	}
	if a.json {
		return a.encode(s)
	}
	fmt.Fprintf(a.out, "pending: %d\nprocessing: %d\ncompleted: %d\nfailed: %d\n",
		s.Pending, s.Processing, s.Completed, s.Failed)
	return nil
}

func (a *admin) retryFailed(ctx context.Context) error {
	n, err := a.store.RetryFailedOutbox(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "requeued %d failed events\n", n)
	return nil
}

func (a *admin) encode(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
