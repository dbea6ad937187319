// hostelctl は寮管理 API を操作するオペレーター向けの CLI です
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-hostel/internal/api"
	"github.com/uma-arai/sbcntr-hostel/internal/auth"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/common/logger"
	"github.com/uma-arai/sbcntr-hostel/internal/service/toast"
	"go.uber.org/zap"
)

const (
	projectName = "hostelctl"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: hostelctl <group> <command> [flags] [args]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format, projectName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if len(cfg.DefaultedKeys) > 0 {
		l.Debug("Environment variables not set, using default values", zap.Strings("keys", cfg.DefaultedKeys))
	}
	defer l.Sync()

	session, err := auth.ParseSession(cfg.Auth.AccessToken, cfg.Auth.RefreshToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostelctl: %v (set HOSTEL_ACCESS_TOKEN)\n", err)
		os.Exit(1)
	}

	client := api.New(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tracing: cfg.EnableTracing,
	}, session, l)

	toasts := toast.NewQueue(cfg.ToastTTL)
	stopToasts := printToasts(toasts, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.EnableTracing {
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)
	}

	a := newApp(cfg, l, session, client, toasts, os.Stdout)
	err = a.run(ctx, flag.Args())
	stopToasts()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "hostelctl: %v\n", err)
		os.Exit(2)
	default:
		l.Debug("Command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "hostelctl: %s\n", api.UserMessage(err))
		os.Exit(1)
	}
}

// printToasts は画面通知を w に書き出します
// 返された関数は購読を止め、未出力の通知を書き終えるまで待ちます
func printToasts(q *toast.Queue, w io.Writer) func() {
	ch, cancel := q.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for t := range ch {
			fmt.Fprintf(w, "[%s] %s: %s\n", t.Level, t.Title, t.Message)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
