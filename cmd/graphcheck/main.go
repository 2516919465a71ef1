// Command graphcheck verifies that a configured graph store is reachable
// and that the mapping layer can run a full lifecycle against it: register a
// probe type, save an instance, look it up through the index, traverse a
// relationship and delete everything again.
//
// The store is selected by NEO4J_URL; memory:// and badger:///path are
// served by the embedded store.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"graphmodel/config"
	"graphmodel/connection"
	"graphmodel/entity"
	"graphmodel/schema"
	_ "graphmodel/store/localstore"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fallbackExit("invalid configuration", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fallbackExit("logger setup failed", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("graphcheck failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("graphcheck passed", zap.String("store", cfg.StoreURL))
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := connection.Initialize(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	types := schema.NewTypeRegistry(conn)
	probe, err := types.Register(ctx, "GraphcheckProbe",
		schema.WithProperties(
			schema.StringProperty("run_id", schema.WithUniqueIndex()),
		),
		schema.WithRelationship("peer", schema.Relationship("GRAPHCHECK_PEER", "GraphcheckProbe")),
	)
	if err != nil {
		return err
	}

	runID := time.Now().Format(time.RFC3339Nano)
	first, err := entity.New(probe, entity.Props{"run_id": runID})
	if err != nil {
		return err
	}
	if err := first.Save(ctx); err != nil {
		return err
	}
	second, err := entity.New(probe, entity.Props{"run_id": runID + "-peer"})
	if err != nil {
		return err
	}
	if err := second.Save(ctx); err != nil {
		return err
	}

	peers, err := first.Rel("peer")
	if err != nil {
		return err
	}
	if _, err := peers.Connect(ctx, second, nil); err != nil {
		return err
	}

	found, err := entity.Get(ctx, probe, entity.Filters{"run_id": runID})
	if err != nil {
		return err
	}
	connected, err := peers.IsConnected(ctx, second)
	if err != nil {
		return err
	}
	logger.Info("probe round trip complete",
		zap.String("node_id", found.Ref().ID),
		zap.Bool("peer_connected", connected),
	)

	if err := second.Delete(ctx); err != nil {
		return err
	}
	return first.Delete(ctx)
}

func fallbackExit(msg string, err error) {
	logger, _ := zap.NewProduction()
	if logger != nil {
		logger.Error(msg, zap.Error(err))
	}
	os.Exit(1)
}
