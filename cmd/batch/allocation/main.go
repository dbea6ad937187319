package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-hostel/internal/common/config"
	"github.com/uma-arai/sbcntr-hostel/internal/common/logger"
	"github.com/uma-arai/sbcntr-hostel/internal/common/utils"
	"github.com/uma-arai/sbcntr-hostel/internal/service/batch"
	"go.uber.org/zap"
)

const (
	projectName = "sbcntr-hostel-allocation"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "バッチ処理のタイムアウト時間")
	flag.Parse()

	// 最後の引数として渡されたタスクトークンを取得
	// ENV=LOCALの場合はタスクトークンを取得しない
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		if flag.NArg() == 0 || flag.Arg(flag.NArg()-1) == "" {
			log.Fatalf("Task token is required")
		}
		taskToken = flag.Arg(flag.NArg() - 1)
	}

	cfg, err := config.LoadConfig(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v", utils.GetStackWithError(err))
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format, projectName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	if len(cfg.DefaultedKeys) > 0 {
		l.Info("Environment variables not set, using default values", zap.Strings("keys", cfg.DefaultedKeys))
	}
	defer l.Sync()

	if cfg.EnableTracing {
		configureTracing(l)
	}

	// Step Functionsクライアントの初期化
	var sfnClient *sfn.Client
	var notifier batch.TaskNotifier
	if !cfg.IsLocal() {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			l.Fatal("Failed to load AWS config", zap.Error(utils.GetStackWithError(err)))
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
		notifier = sfnClient
	}

	service, err := batch.NewAllocationBatchService(cfg, notifier, l)
	if err != nil {
		l.Fatal("Failed to create service", zap.Error(utils.GetStackWithError(err)))
	}
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			l.Warn("Failed to add timeout metadata", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	select {
	case sig := <-sigChan:
		l.Info("Received signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		if err != nil {
			l.Error("Batch process failed", zap.Error(err))

			// ローカル環境以外の場合のみStep Functionsのエラー通知を行う
			if sfnClient != nil {
				_, sendErr := sfnClient.SendTaskFailure(context.Background(), &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("AllocationBatchFailed"),
					Cause:     aws.String(err.Error()),
				})
				if sendErr != nil {
					l.Error("Failed to send task failure", zap.Error(sendErr))
				}
			}

			l.Sync()
			os.Exit(1)
		}
		l.Info("Batch process completed successfully")
	}
}

// configureTracing は X-Ray を設定します
// 設定に失敗した場合はデフォルトの設定を使用します
func configureTracing(l *zap.Logger) {
	if err := xray.Configure(xray.Config{
		DaemonAddr:     "127.0.0.1:2000",
		ServiceVersion: "1.0.0",
	}); err != nil {
		l.Warn("Failed to configure X-Ray", zap.Error(err))
		if configErr := xray.Configure(xray.Config{}); configErr != nil {
			l.Fatal("Failed to configure default X-Ray settings", zap.Error(configErr))
		}
	}
	os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
}
