// Package main создаёт учётную запись администратора и при необходимости
// заменяет каталог товаров содержимым JSON-файла.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/logging"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/service"
)

type catalogEntry struct {
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	Notes       []string        `json:"notes"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
}

func decodeCatalog(r io.Reader) ([]model.Product, error) {
	var entries []catalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	products := make([]model.Product, 0, len(entries))
	for _, e := range entries {
		products = append(products, model.Product{
			Name:        e.Name,
			Brand:       e.Brand,
			Description: e.Description,
			Notes:       e.Notes,
			Category:    e.Category,
			Price:       e.Price,
			Stock:       e.Stock,
			Image:       e.Image,
		})
	}
	return products, nil
}

func readCatalog(path string) ([]model.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	return decodeCatalog(f)
}

type seeder interface {
	EnsureAdmin(ctx context.Context, name, email, password string) (*model.User, bool, error)
	ReplaceCatalog(ctx context.Context, products []model.Product) (int, error)
}

func run(ctx context.Context, cfg *config.SeedConfig, svc seeder, logf func(string, ...any)) error {
	admin, created, err := svc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		logf("admin created: %s", admin.Email)
	} else {
		logf("admin ensured: %s", admin.Email)
	}

	if cfg.ProductsFile == "" {
		return nil
	}

	products, err := readCatalog(cfg.ProductsFile)
	if err != nil {
		return err
	}

	n, err := svc.ReplaceCatalog(ctx, products)
	if err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	logf("seeded %d products", n)
	return nil
}

func main() {
	os.Exit(seed())
}

// seed возвращает код завершения процесса после закрытия всех ресурсов.
func seed() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Print(err)
		return 1
	}

	cfg, err := config.ParseSeed()
	if err != nil {
		log.Printf("configuration error: %v", err)
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Printf("logger initialization error: %v", err)
		return 1
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Errorw("database initialization error", "error", err.Error())
		return 1
	}

	svc := service.NewService(repo)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, cfg, svc, sugar.Infof); err != nil {
		sugar.Errorw("seed failed", "error", err)
		return 1
	}
	sugar.Info("seed complete")
	return 0
}
