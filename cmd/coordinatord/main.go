// Command coordinatord is the job-orchestration service's entry point: it
// parses flags, opens the job store, and supervises the coordinator's main
// loop alongside the three stage workers and the admin HTTP surface,
// mirroring the teacher's errgroup-supervised main().
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/golang/glog"
	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"

	"github.com/relayforge/mediaforge/adminhttp"
	"github.com/relayforge/mediaforge/config"
	"github.com/relayforge/mediaforge/coordinator"
	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/fetchclient"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/requestsource"
	"github.com/relayforge/mediaforge/store"
	"github.com/relayforge/mediaforge/worker"
)

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}

	fs := flag.NewFlagSet("coordinatord", flag.ExitOnError)
	cli := config.Cli{}

	fs.StringVar(&cli.DataDir, "data-dir", config.DefaultDataDir, "Root directory for the job store, per-job working directories and canned concat intros")
	fs.StringVar(&cli.AdminAddr, "admin-addr", "127.0.0.1:8080", "Address to bind the admin HTTP surface (/healthz, /metrics) to")
	fs.IntVar(&cli.MaxJobsInFlight, "max-jobs-in-flight", config.MaxJobsInFlight, "Maximum number of non-terminal jobs the coordinator will admit at once")
	fs.IntVar(&cli.PollMillis, "poll-millis", config.ReconciliationTickMillis, "Coordinator main loop tick granularity, in milliseconds")
	_ = fs.String("config", "", "config file (optional)")

	err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("MEDIAFORGE"),
	)
	if err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}

	config.MaxJobsInFlight = cli.MaxJobsInFlight
	config.ReconciliationTickMillis = cli.PollMillis

	if err := os.MkdirAll(cli.DataDir, 0755); err != nil {
		glog.Fatalf("error creating data dir %s: %s", cli.DataDir, err)
	}

	st, err := store.Open(filepath.Join(cli.DataDir, config.DBFileName))
	if err != nil {
		glog.Fatalf("error opening job store: %s", err)
	}
	defer st.Close()

	group, ctx := errgroup.WithContext(context.Background())

	if err := st.InitSchema(ctx); err != nil {
		glog.Fatalf("error initializing job store schema: %s", err)
	}

	env := envstore.New(cli.DataDir)
	m := metrics.New(config.Version)
	fc := fetchclient.New(m.FetchClient)

	// The chat backend itself is out of scope; FakeGateway lets the
	// coordinator, workers, and admin surface run as a complete service even
	// with no chat integration wired in.
	gw := requestsource.NewFakeGateway()
	adapter := requestsource.NewAdapter(env)

	c := coordinator.New(st, env, gw, fc, m, cli.DataDir)
	if err := c.Restore(ctx); err != nil {
		glog.Fatalf("error restoring active jobs: %s", err)
	}

	downloadWorker := worker.NewDownloadWorker(env, c.CommEvents(), m)
	encodeWorker := worker.NewEncodeWorker(env, c.CommEvents(), m)
	uploadWorker := worker.NewUploadWorker(env, c.CommEvents(), m)

	group.Go(func() error {
		adapter.Pump(ctx, gw, c.Commands(), c.Cancels())
		return nil
	})

	group.Go(func() error {
		c.Run(ctx)
		return nil
	})

	group.Go(func() error {
		downloadWorker.Run(ctx, c.DownloadTasks())
		return nil
	})

	group.Go(func() error {
		encodeWorker.Run(ctx, c.EncodeTasks())
		return nil
	})

	group.Go(func() error {
		uploadWorker.Run(ctx, c.UploadTasks())
		return nil
	})

	group.Go(func() error {
		return adminhttp.New(cli.AdminAddr, m.Registry).ListenAndServe()
	})

	group.Go(func() error {
		return handleSignals(ctx)
	})

	if err := group.Wait(); err != nil {
		glog.Infof("shutdown complete, reason: %s", err)
	}
}

func handleSignals(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-sig:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
