// Package main provides a CLI tool for seeding the database with demo products.
package main

import (
	"context"
	"fmt"
	"os"

	"stockkeeper/internal/app"
	"stockkeeper/internal/config"
	"stockkeeper/internal/core/types"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/pkg/logger"
)

// ProductCreator is the part of the product service the seeder uses.
type ProductCreator interface {
	Create(ctx context.Context, in product.CreateInput) (*product.Product, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error)
}

var demoProducts = []product.CreateInput{
	{Name: "Kopi Arabica Gayo 250g", Unit: "pcs", Cost: types.MustMoney("45000"), Price: types.MustMoney("62000"), InitialStock: 120},
	{Name: "Kopi Robusta Lampung 250g", Unit: "pcs", Cost: types.MustMoney("32000"), Price: types.MustMoney("45000"), InitialStock: 80},
	{Name: "Gula Aren Cair 1L", Unit: "btl", Cost: types.MustMoney("28000"), Price: types.MustMoney("39000"), InitialStock: 40},
	{Name: "Susu UHT Full Cream 1L", Unit: "kotak", Cost: types.MustMoney("17500"), Price: types.MustMoney("21000"), InitialStock: 200},
	{Name: "Cup Plastik 16oz", Unit: "pcs", Cost: types.MustMoney("650"), Price: types.MustMoney("900"), InitialStock: 0},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	n, err := seedProducts(ctx, application.Products, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}
	log.Infow("seeding completed", "products", n)
}

// seedProducts creates the demo catalog unless products already exist.
func seedProducts(ctx context.Context, products ProductCreator, log *logger.Logger) (int, error) {
	existing, err := products.List(ctx, domain.ListFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if existing.TotalCount > 0 {
		log.Infow("products already present, skipping", "count", existing.TotalCount)
		return 0, nil
	}

	for i, in := range demoProducts {
		p, err := products.Create(ctx, in)
		if err != nil {
			return i, fmt.Errorf("create %q: %w", in.Name, err)
		}
		log.Infow("product seeded", "code", p.Code, "name", p.Name, "stock", p.CurrentStock)
	}
	return len(demoProducts), nil
}
