package main

import (
	"fmt"
	"time"

	"github.com/soulmint/soulmint/pkg/backfill"
	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/evolution"
	"github.com/soulmint/soulmint/pkg/experience"
	"github.com/soulmint/soulmint/pkg/gate"
	"github.com/soulmint/soulmint/pkg/market"
	"github.com/soulmint/soulmint/pkg/persona"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/providers"
	"github.com/soulmint/soulmint/pkg/soul"
)

// engine is the fully wired progression stack shared by serve and chat.
type engine struct {
	store    *soul.SQLiteStore
	listings *market.SQLiteListings
	gate     *gate.Gate
	backfill *backfill.Service
}

func buildEngine(cfg *config.Config) (*engine, error) {
	table := progression.NewTable(cfg.Progression.ExtrapolationStep)

	store, err := soul.OpenSQLite(cfg.Storage.Path, table)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	listings, err := market.NewSQLiteListings(store.DB())
	if err != nil {
		store.Close()
		return nil, err
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	replies := persona.NewReplyEngine(provider, cfg.LLM.Model, cfg.LLM.RequestsPerMinute)
	rewriter := persona.NewRewriteEngine(provider, cfg.LLM.Model, cfg.LLM.RequestsPerMinute)

	coordinator := evolution.NewCoordinator(rewriter,
		time.Duration(cfg.LLM.RewriteTimeoutSeconds)*time.Second)
	accountant := experience.NewAccountant(cfg.Progression, table)

	g := gate.New(store, replies, accountant, coordinator, table, gate.Options{
		ReplyTimeout: time.Duration(cfg.LLM.ReplyTimeoutSeconds) * time.Second,
		Listings:     listings,
	})

	return &engine{
		store:    store,
		listings: listings,
		gate:     g,
		backfill: backfill.NewService(cfg.Backfill, store, coordinator),
	}, nil
}

// openStore wires only the persistence layer, for commands that never
// talk to a provider.
func openStore(cfg *config.Config) (*soul.SQLiteStore, *market.SQLiteListings, error) {
	table := progression.NewTable(cfg.Progression.ExtrapolationStep)
	store, err := soul.OpenSQLite(cfg.Storage.Path, table)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	listings, err := market.NewSQLiteListings(store.DB())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, listings, nil
}
