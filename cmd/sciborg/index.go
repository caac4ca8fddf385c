package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/chopralab/sciborg/pkg/config"
)

// IndexCmd indexes a documents folder into a vector store.
type IndexCmd struct {
	Store string `help:"Document store name from the config file."`
	Docs  string `help:"Documents folder (zero-config alternative to --store)." type:"path"`
	Watch bool   `help:"Keep watching the folder and re-index on changes."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	name := c.Store
	switch {
	case name == "" && c.Docs != "":
		// Zero-config store over the given folder, persisted locally.
		name = "docs"
		storeCfg := &config.DocumentStoreConfig{
			Source: &config.DocumentSourceConfig{Path: c.Docs},
			Watch:  c.Watch,
		}
		storeCfg.SetDefaults()
		if cfg.DocumentStores == nil {
			cfg.DocumentStores = map[string]*config.DocumentStoreConfig{}
		}
		cfg.DocumentStores[name] = storeCfg
	case name == "" && len(cfg.DocumentStores) == 1:
		for only := range cfg.DocumentStores {
			name = only
		}
	case name == "":
		return fmt.Errorf("--store or --docs is required")
	}

	store, cleanup, err := buildDocumentStore(cfg, name)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Index(ctx); err != nil {
		return err
	}
	fmt.Printf("Indexed %d documents into collection %q\n", store.IndexedCount(), store.Collection())

	if c.Watch {
		if err := store.StartWatching(ctx); err != nil {
			return err
		}
		fmt.Println("Watching for changes. Press Ctrl+C to stop")
		<-ctx.Done()
	}
	return nil
}
