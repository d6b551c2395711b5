package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-orders/db"
	"github.com/xenking/storefront-orders/internal/domain/catalog"
	"github.com/xenking/storefront-orders/internal/repository"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		workers      int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file, optionally gzipped (default: embedded catalog)")
	flag.IntVar(&workers, "workers", 4, "concurrent upserts")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, workers); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, workers int) error {
	products, err := loadProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCatalogRepository(pool)
	if err := seedProducts(ctx, repo, products, workers); err != nil {
		return errors.Wrap(err, "seed products")
	}

	// Explicit ids leave the serial sequence behind.
	if err := repo.SyncSequence(ctx); err != nil {
		return errors.Wrap(err, "sync product id sequence")
	}
	return nil
}

func loadProducts(path string) ([]catalog.Product, error) {
	if path == "" {
		slog.Info("using embedded catalog")
		return parseProducts(bytes.NewReader(db.Products))
	}

	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return parseProducts(r)
}

// parseProducts reads a JSON array of {"id","name","description","price","stock"}.
// Prices may be numbers or strings.
func parseProducts(r io.Reader) ([]catalog.Product, error) {
	var products []catalog.Product
	err := jx.Decode(r, 4096).Arr(func(d *jx.Decoder) error {
		var p catalog.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Int64()
			case "name":
				p.Name, err = d.Str()
			case "description":
				p.Description, err = d.Str()
			case "price":
				p.Price, err = decodePrice(d)
			case "stock":
				p.Stock, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		if err := validateProduct(p); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

func validateProduct(p catalog.Product) error {
	switch {
	case p.ID <= 0:
		return errors.Errorf("product %q: id must be positive", p.Name)
	case strings.TrimSpace(p.Name) == "":
		return errors.Errorf("product %d: name is required", p.ID)
	case !p.Price.IsPositive():
		return errors.Errorf("product %d: price must be positive", p.ID)
	case p.Stock < 0:
		return errors.Errorf("product %d: stock must not be negative", p.ID)
	}
	return nil
}

type upserter interface {
	Upsert(ctx context.Context, p catalog.Product) error
}

func seedProducts(ctx context.Context, repo upserter, products []catalog.Product, workers int) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, p := range products {
		g.Go(func() error {
			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %d", p.ID)
			}
			slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
			return nil
		})
	}
	return g.Wait()
}
