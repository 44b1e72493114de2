package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/rejoin-sim/envserver"
	"github.com/tsinghua-fib-lab/rejoin-sim/train"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/output"
	"gopkg.in/yaml.v2"
)

var (
	// 运行模式：train训练，eval评估检查点，serve以RPC提供环境
	mode = flag.String("mode", "train", "run mode (train, eval, serve)")
	// serve模式监听地址
	listenAddr = flag.String("listen", ":51102", "RPC listening address for serve mode")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// eval模式必需；train模式下指定时从检查点继续训练
	checkpointPath = flag.String("checkpoint", "", "checkpoint file path")
	// eval模式的episode数
	episodes = flag.Int("episodes", 100, "number of evaluation episodes")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "rejoin-sim")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	c, err := config.Parse(file)
	if err != nil {
		log.Panic(err)
	}
	rc, err := config.NewRuntimeConfig(c)
	if err != nil {
		log.Panicf("config invalid: %v", err)
	}
	if out, err := yaml.Marshal(rc.All); err == nil {
		log.Infof("config loaded:\n%s", out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := output.Open(ctx, rc.All.Output, rc.All.Experiment.Name)
	if err != nil {
		log.Panicf("output open err: %v", err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.Errorf("output close err: %v", err)
		}
	}()

	switch *mode {
	case "train":
		err = runTrain(ctx, rc, store)
	case "eval":
		err = runEval(ctx, rc, store)
	case "serve":
		var s *envserver.Server
		if s, err = envserver.NewServer(rc, store, uuid.NewString()); err == nil {
			err = envserver.RunServer(ctx, *listenAddr, s)
		}
	default:
		log.Panicf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Errorf("%s failed: %v", *mode, err)
		// defer不会在os.Exit后执行
		store.Close(context.Background())
		os.Exit(1)
	}
}

func runTrain(ctx context.Context, rc *config.RuntimeConfig, store output.Store) error {
	t, err := train.NewTrainer(rc, store)
	if err != nil {
		return err
	}
	log.Infof("training run %s, experiment %s", t.RunID(), rc.All.Experiment.Name)
	if *checkpointPath != "" {
		cp, err := train.LoadCheckpoint(*checkpointPath)
		if err != nil {
			return err
		}
		if err := t.Resume(cp); err != nil {
			return err
		}
	}
	cp, err := t.Run(ctx)
	if err != nil {
		return err
	}
	log.Infof("training finished: run %s, best iteration %d, score %.4f, success %.2f",
		cp.RunID, cp.BestIteration, cp.Score, cp.SuccessRate)
	return nil
}

func runEval(ctx context.Context, rc *config.RuntimeConfig, store output.Store) error {
	if *checkpointPath == "" {
		log.Panic("eval mode requires -checkpoint")
	}
	cp, err := train.LoadCheckpoint(*checkpointPath)
	if err != nil {
		return err
	}
	_, err = train.Evaluate(ctx, rc, cp.Policies, *episodes, store, cp.RunID)
	return err
}
