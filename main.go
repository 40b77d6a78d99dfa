package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine/app"
)

var (
	versionName = "dev"
	commitSHA   = ""
	buildTime   = ""
)

func main() {
	configPath := flag.String("c", "config.ini", "config file")
	drainTimeout := flag.Duration("drain", 30*time.Second, "how long to wait for running downloads on shutdown")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	build := app.BuildInfo{
		RuntimeVer: runtime.Version(),
		BinVersion: versionName,
		CommitSHA:  commitSHA,
		BuildTime:  buildTime,
		BuildArch:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if *showVersion {
		fmt.Printf("trackfetch %s (%s, built %s, %s %s)\n", build.BinVersion, build.CommitSHA, build.BuildTime, build.RuntimeVer, build.BuildArch)
		return
	}

	if err := run(*configPath, *drainTimeout, build); err != nil {
		fmt.Fprintln(os.Stderr, "trackfetch:", err)
		os.Exit(1)
	}
}

func run(configPath string, drain time.Duration, build app.BuildInfo) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, configPath, build)
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		_ = application.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	application.Logger.Info("shutting down", "drain", drain)
	shutdownCtx, done := context.WithTimeout(context.Background(), drain)
	defer done()
	return application.Shutdown(shutdownCtx)
}
