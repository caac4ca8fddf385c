package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/chopralab/sciborg/pkg/agent"
	"github.com/chopralab/sciborg/pkg/config"
	"github.com/chopralab/sciborg/pkg/llms"
	"github.com/chopralab/sciborg/pkg/rag"
)

// ChatCmd sends one message to an agent operating a driver.
type ChatCmd struct {
	Message string `arg:"" help:"Message for the agent."`

	Driver string `help:"Driver the agent operates (microwave, liquid_handler)." default:"microwave"`
	Agent  string `help:"Agent name from the config file."`
	Store  string `help:"Document store name to expose as a search tool."`
}

// resolveAgentConfig picks the named agent config, the sole configured
// agent, or a defaulted zero-config agent.
func resolveAgentConfig(cfg *config.Config, name string) (*config.AgentConfig, error) {
	if name != "" {
		agentCfg, ok := cfg.Agents[name]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", name)
		}
		return agentCfg, nil
	}
	if len(cfg.Agents) == 1 {
		for _, only := range cfg.Agents {
			return only, nil
		}
	}
	agentCfg := &config.AgentConfig{}
	agentCfg.SetDefaults()
	return agentCfg, nil
}

// buildAgent assembles an agent over the given driver from config.
func buildAgent(cfg *config.Config, agentName string, drv *driver, store *rag.DocumentStore) (*agent.Agent, llms.Provider, error) {
	agentCfg, err := resolveAgentConfig(cfg, agentName)
	if err != nil {
		return nil, nil, err
	}

	llm, err := resolveLLM(cfg, agentCfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	var opts []agent.Option
	if store != nil {
		opts = append(opts, agent.WithDocumentStore(store))
	}

	a, err := agent.New(agentCfg, llm, drv.microservice, opts...)
	if err != nil {
		llm.Close()
		return nil, nil, err
	}
	return a, llm, nil
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	drv, err := builtinDriver(c.Driver)
	if err != nil {
		return err
	}

	var store *rag.DocumentStore
	if c.Store != "" {
		built, cleanup, err := buildDocumentStore(cfg, c.Store)
		if err != nil {
			return err
		}
		defer cleanup()
		store = built
	}

	a, llm, err := buildAgent(cfg, c.Agent, drv, store)
	if err != nil {
		return err
	}
	defer llm.Close()

	result, err := a.Invoke(ctx, c.Message)
	if err != nil {
		return err
	}

	for _, step := range result.Steps {
		fmt.Printf("  %s(%v) -> %s\n", step.Tool, step.Args, step.Observation)
	}
	fmt.Println(result.Output)
	return nil
}
