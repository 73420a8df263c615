// Command seed-db creates the schema and loads the development catalog,
// trade accounts, and their API keys.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rrstones/storefront/db"
	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/handler"
	"github.com/rrstones/storefront/internal/storage/postgres"
)

type variantJSON struct {
	ID             string          `json:"id"`
	ProductName    string          `json:"product_name"`
	Size           string          `json:"size"`
	PiecesPerCrate int             `json:"pieces_per_crate"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	WeightPerPiece decimal.Decimal `json:"weight_per_piece"`
	StockPieces    int             `json:"stock_pieces"`
}

type userJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Tier    string `json:"tier"`
	Address struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		Pincode string `json:"pincode"`
	} `json:"address"`
	APIKey string `json:"api_key"`
}

func main() {
	var (
		databaseURL  string
		variantsFile string
		usersFile    string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&variantsFile, "variants-file", "", "path to variants JSON file (default: embedded development catalog)")
	flag.StringVar(&usersFile, "users-file", "", "path to users JSON file (default: embedded development accounts)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STONE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STONE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, variantsFile, usersFile, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, variantsFile, usersFile, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	variantData, err := readSeed(variantsFile, db.SeedVariants, "variants")
	if err != nil {
		return err
	}
	userData, err := readSeed(usersFile, db.SeedUsers, "users")
	if err != nil {
		return err
	}

	if err := seedVariants(ctx, pool, variantData); err != nil {
		return errors.Wrap(err, "seed variants")
	}

	if err := seedUsers(ctx, pool, userData, pepper); err != nil {
		return errors.Wrap(err, "seed users")
	}

	return nil
}

// readSeed loads path when given, otherwise falls back to the embedded seed.
func readSeed(path string, embedded []byte, kind string) ([]byte, error) {
	if path == "" {
		slog.Info("using embedded seed data", slog.String("kind", kind))
		return embedded, nil
	}

	slog.Info("reading seed file", slog.String("kind", kind), slog.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s file", kind)
	}
	return data, nil
}

func seedVariants(ctx context.Context, pool *pgxpool.Pool, data []byte) error {
	var variants []variantJSON
	if err := json.Unmarshal(data, &variants); err != nil {
		return errors.Wrap(err, "parse variants JSON")
	}

	slog.Info("upserting variants", slog.Int("count", len(variants)))

	repo := postgres.NewVariantRepository(pool)
	for _, v := range variants {
		id, err := catalog.CanonicalID(v.ID)
		if err != nil {
			return errors.Wrapf(err, "canonicalize variant id %s", v.ID)
		}

		if err := repo.Upsert(ctx, &catalog.Variant{
			ID:             id,
			ProductName:    v.ProductName,
			Size:           v.Size,
			PiecesPerCrate: v.PiecesPerCrate,
			UnitPrice:      v.UnitPrice,
			WeightPerPiece: v.WeightPerPiece,
			StockPieces:    v.StockPieces,
		}); err != nil {
			return errors.Wrapf(err, "upsert variant %s", id)
		}

		slog.Info("upserted variant",
			slog.String("id", id),
			slog.String("product", v.ProductName),
			slog.String("size", v.Size),
		)
	}

	return nil
}

const (
	upsertUserSQL = `INSERT INTO users (id, name, email, phone, tier, street, city, state, pincode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			tier = EXCLUDED.tier,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			pincode = EXCLUDED.pincode`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, user_id, key_hash, name, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			key_hash = EXCLUDED.key_hash,
			name = EXCLUDED.name,
			active = TRUE`
)

func seedUsers(ctx context.Context, pool *pgxpool.Pool, data []byte, pepper string) error {
	var users []userJSON
	if err := json.Unmarshal(data, &users); err != nil {
		return errors.Wrap(err, "parse users JSON")
	}

	slog.Info("upserting users", slog.Int("count", len(users)))

	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL,
			u.ID, u.Name, u.Email, u.Phone, u.Tier,
			u.Address.Street, u.Address.City, u.Address.State, u.Address.Pincode,
		); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}

		if u.APIKey == "" {
			slog.Info("upserted user without api key", slog.String("id", u.ID))
			continue
		}

		keyHash := handler.HashAPIKey(u.APIKey, []byte(pepper))
		if _, err := pool.Exec(ctx, upsertAPIKeySQL,
			"key-"+u.ID, u.ID, keyHash, u.Name+" development key",
		); err != nil {
			return errors.Wrapf(err, "upsert api key for user %s", u.ID)
		}

		slog.Info("upserted user", slog.String("id", u.ID), slog.String("tier", u.Tier))
	}

	return nil
}
