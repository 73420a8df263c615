// Command pricelist-ingest loads supplier price list exports into the variant
// catalog. Exports are gzip-compressed CSV files, one variant per line:
//
//	id,product_name,size,pieces_per_crate,unit_price,weight_per_piece,stock_pieces
//
// Suppliers ship one file per quarry region and regions overlap, so files are
// streamed concurrently and the first occurrence of a variant wins. A bloom
// filter front-runs the exact dedupe set for multi-million line exports.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	fieldCount    = 7
)

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing pricelist*.csv.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("price list ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("price list ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "pricelist*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "glob price list files")
	}
	if len(files) == 0 {
		return errors.Errorf("no pricelist*.csv.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewVariantRepository(pool)
	rows := make(chan *catalog.Variant, 1024)

	g, ctx := errgroup.WithContext(ctx)

	// Readers: one goroutine per file, parse-only.
	readers, rctx := errgroup.WithContext(ctx)
	for i, f := range files {
		readers.Go(readPricelist(rctx, i, f, rows))
	}
	g.Go(func() error {
		defer close(rows)
		return readers.Wait()
	})

	// Single writer owns the dedupe state and the upserts.
	g.Go(func() error {
		return writeVariants(ctx, repo, rows)
	})

	return g.Wait()
}

// readPricelist streams one gzip file and sends parsed rows. Malformed lines
// are counted and skipped; a supplier export is never rejected wholesale.
func readPricelist(ctx context.Context, idx int, path string, rows chan<- *catalog.Variant) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var total, malformed uint64

		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			total++
			if total%progressEvery == 0 {
				slog.Info("ingest progress", slog.Int("file", idx+1), slog.Uint64("lines", total))
			}

			v, err := parseLine(scanner.Text())
			if err != nil {
				malformed++
				continue
			}

			select {
			case rows <- v:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete",
			slog.Int("file", idx+1),
			slog.Uint64("lines", total),
			slog.Uint64("malformed", malformed),
		)
		return nil
	}
}

func parseLine(line string) (*catalog.Variant, error) {
	fields := strings.Split(line, ",")
	if len(fields) != fieldCount {
		return nil, errors.Errorf("expected %d fields, got %d", fieldCount, len(fields))
	}

	id, err := catalog.CanonicalID(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, err
	}

	ppc, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil || ppc < 1 {
		return nil, errors.Errorf("bad pieces_per_crate %q", fields[3])
	}

	price, err := decimal.NewFromString(strings.TrimSpace(fields[4]))
	if err != nil || price.IsNegative() {
		return nil, errors.Errorf("bad unit_price %q", fields[4])
	}

	weight, err := decimal.NewFromString(strings.TrimSpace(fields[5]))
	if err != nil || weight.IsNegative() {
		return nil, errors.Errorf("bad weight_per_piece %q", fields[5])
	}

	stock, err := strconv.Atoi(strings.TrimSpace(fields[6]))
	if err != nil || stock < 0 {
		return nil, errors.Errorf("bad stock_pieces %q", fields[6])
	}

	return &catalog.Variant{
		ID:             id,
		ProductName:    strings.TrimSpace(fields[1]),
		Size:           strings.TrimSpace(fields[2]),
		PiecesPerCrate: ppc,
		UnitPrice:      price,
		WeightPerPiece: weight,
		StockPieces:    stock,
	}, nil
}

// writeVariants upserts rows, skipping variant IDs already written in this
// run (first occurrence wins). The bloom filter answers "definitely new"
// up front; only IDs it flags as possible repeats hit the exact seen-set.
func writeVariants(ctx context.Context, repo *postgres.VariantRepository, rows <-chan *catalog.Variant) error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})

	var written, skipped uint64
	for v := range rows {
		if filter.TestString(v.ID) {
			if _, dup := seen[v.ID]; dup {
				skipped++
				continue
			}
		}
		filter.AddString(v.ID)
		seen[v.ID] = struct{}{}

		if err := repo.Upsert(ctx, v); err != nil {
			return errors.Wrapf(err, "upsert variant %s", v.ID)
		}

		written++
		if written%10_000 == 0 {
			slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		}
	}

	slog.Info("write complete", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
	return nil
}
