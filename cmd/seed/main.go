// Command seed loads the starter item catalogue into an empty store.
//
// Usage:
//
//	STORE_DRIVER=mongo MONGO_URL=mongodb://localhost:27017 JWT_SECRET=x go run ./cmd/seed
//	go run ./cmd/seed -file ./my-items.json
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/secondchance/secondchance/internal/config"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/model"
	"github.com/secondchance/secondchance/internal/service"
	"github.com/secondchance/secondchance/internal/store"
)

//go:embed secondChanceItems.json
var defaultCatalogue []byte

// catalogue is the on-disk format: {"docs": [item, ...]}.
type catalogue struct {
	Docs []*model.Item `json:"docs"`
}

func main() {
	file := flag.String("file", "", "JSON catalogue to import (default: built-in starter items)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(ctx, *file, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, file string, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("STORE_DRIVER=memory keeps nothing to seed")
	}

	items, err := loadCatalogue(file)
	if err != nil {
		return err
	}

	gw, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close(context.Background()) }()

	if err := gw.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	listing := service.NewListingService(gw, nil, logger, metrics.NewNoop())
	res, err := listing.Import(ctx, items)
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Println("Items already exist in the store; nothing imported")
		return nil
	}
	fmt.Printf("Inserted %d items\n", res.Inserted)
	return nil
}

func loadCatalogue(file string) ([]*model.Item, error) {
	data := defaultCatalogue
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open catalogue: %w", err)
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return nil, fmt.Errorf("read catalogue: %w", err)
		}
	}

	var c catalogue
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return c.Docs, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Gateway, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		gw, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect postgres at %s: %s", config.RedactURL(cfg.DatabaseURL), config.SanitizeError(err, cfg.DatabaseURL))
		}
		return gw, nil
	default:
		gw, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.StoreTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect mongo at %s: %s", config.RedactURL(cfg.MongoURL), config.SanitizeError(err, cfg.MongoURL))
		}
		return gw, nil
	}
}
