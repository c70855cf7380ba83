package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rushteam/fraudkit/config"
	"github.com/rushteam/fraudkit/core"
	"github.com/rushteam/fraudkit/logger"
)

// cli 保存全局 flag 与输入输出，便于测试
type cli struct {
	configPath string
	bundle     string
	env        string
	logLevel   string
	workers    int
	signals    bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// exitCode 由子命令设置；cobra 自身的错误（未知 flag 等）按失败处理
	exitCode int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	// Ctrl-C 取消进行中的批量打分，已完成的行照常输出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		if c.exitCode == exitOK {
			c.exitCode = exitFailed
		}
		if core.IsConfiguration(err) {
			c.exitCode = exitConfig
		}
		fmt.Fprintf(stderr, "fraudscore: %v\n", err)
	}
	return c.exitCode
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fraudscore",
		Short:         "Stacked-ensemble fraud risk scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	f.StringVarP(&c.bundle, "bundle", "b", "", "model bundle path (overrides artifacts.source)")
	f.StringVar(&c.env, "env", "", "environment: local, dev, test, prod (overrides config)")
	f.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.IntVarP(&c.workers, "workers", "w", 0, "batch workers (0 = config / GOMAXPROCS)")
	f.BoolVar(&c.signals, "signals", false, "include per-specialist probabilities in results")

	root.AddCommand(
		c.infoCmd(),
		c.scoreCmd(),
		c.batchCmd(),
		c.reportCmd(),
	)
	return root
}

// loadConfig 合并配置文件与命令行 flag
func (c *cli) loadConfig() (config.Config, error) {
	var cfg config.Config
	switch {
	case c.configPath != "":
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return cfg, err
		}
	case c.bundle != "":
		cfg = config.Default(c.bundle)
	default:
		return cfg, core.NewConfigurationError(core.ModuleConfig, nil, "either --config or --bundle is required")
	}
	if c.bundle != "" {
		cfg.Artifacts.Source = c.bundle
	}
	if c.env != "" {
		cfg.Env = c.env
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.workers > 0 {
		cfg.Batch.Workers = c.workers
	}
	if c.signals {
		cfg.Scoring.Signals = true
	}
	return cfg, cfg.Validate()
}

// runtime 加载配置与工件；日志写到 stderr，stdout 只输出 JSON
func (c *cli) runtime(ctx context.Context) (*config.Runtime, *zap.Logger, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, core.NewConfigurationError(core.ModuleConfig, err, "create logger")
	}
	rt, err := cfg.Build(ctx, log, nil)
	if err != nil {
		return nil, log, err
	}
	return rt, log, nil
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errorBody 错误的 JSON 表示
type errorBody struct {
	Code    string `json:"code"`
	Module  string `json:"module,omitempty"`
	Feature string `json:"feature,omitempty"`
	Message string `json:"message"`
}

func newErrorBody(err error) *errorBody {
	if err == nil {
		return nil
	}
	if de := core.GetDomainError(err); de != nil {
		return &errorBody{Code: de.Code, Module: de.Module, Feature: de.Feature, Message: err.Error()}
	}
	code := "UNKNOWN"
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = "CANCELED"
	}
	return &errorBody{Code: code, Message: err.Error()}
}
