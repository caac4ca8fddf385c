// Command sciborg is the CLI for the sciborg framework.
//
// Usage:
//
//	sciborg serve --driver microwave
//	sciborg chat --driver microwave "Open the lid."
//	sciborg index --docs ./docs
//	sciborg benchmark --driver microwave --input "Open the lid." --expect "The lid is open."
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Serve     ServeCmd     `cmd:"" help:"Serve a driver microservice over HTTP."`
	Chat      ChatCmd      `cmd:"" help:"Send one message to an agent operating a driver."`
	Index     IndexCmd     `cmd:"" help:"Index a documents folder into a vector store."`
	Benchmark BenchmarkCmd `cmd:"" help:"Score an agent against a task."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("sciborg version %s\n", version)
	return nil
}

// loadConfig loads the config file when one was given, otherwise falls
// back to a zero-config defaulted Config (provider detected from env).
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	if err := config.LoadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg, nil
}

// resolveLLM builds the LLM provider named by an agent config, or a
// zero-config provider when the config has no llms section.
func resolveLLM(cfg *config.Config, name string) (llms.Provider, error) {
	llmCfg := &config.LLMConfig{}
	switch {
	case name != "":
		named, ok := cfg.LLMs[name]
		if !ok {
			return nil, fmt.Errorf("unknown llm %q", name)
		}
		llmCfg = named
	case len(cfg.LLMs) == 1:
		for _, only := range cfg.LLMs {
			llmCfg = only
		}
	}

	llmCfg.SetDefaults()
	if err := llmCfg.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	return llms.NewProvider(llmCfg)
}

func initLogger(cli *CLI) (func(), error) {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, err
	}

	output := os.Stderr
	cleanup := func() {}
	if cli.LogFile != "" {
		file, closeFile, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFile
	}

	logger.Init(level, output, cli.LogFormat)
	return cleanup, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("sciborg"),
		kong.Description("sciborg - LLM agents for laboratory instruments"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
