// Command seeder loads the built-in demo catalog and packages.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/pcquote-api/internal/bundle"
	"github.com/noah-isme/pcquote-api/internal/catalog"
)

func main() {
	force := flag.Bool("force", false, "wipe products and packages before seeding")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&existing); err != nil {
		log.Fatalf("count products: %v", err)
	}
	if existing > 0 && !*force {
		log.Printf("catalog already has %d products, nothing to do (use -force to reseed)", existing)
		return
	}
	if *force {
		if _, err := tx.ExecContext(ctx, `TRUNCATE package_items, packages, products RESTART IDENTITY`); err != nil {
			log.Fatalf("truncate: %v", err)
		}
	}

	ids, err := seedProducts(ctx, tx)
	if err != nil {
		log.Fatal(err)
	}
	if err := seedPackages(ctx, tx, ids); err != nil {
		log.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("commit: %v", err)
	}
	log.Println("Seeding completed successfully!")
}

// seedProducts inserts the sample catalog and maps sample ids to stored ids.
func seedProducts(ctx context.Context, tx *sql.Tx) (map[int64]int64, error) {
	fmt.Println("Seeding products...")
	ids := make(map[int64]int64)
	for _, p := range catalog.SampleProducts() {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO products (category, name, price) VALUES ($1, $2, $3) RETURNING id`,
			p.Category.String(), p.Name, p.Price.StringFixed(2),
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert product %q: %w", p.Name, err)
		}
		ids[p.ID] = id
	}
	return ids, nil
}

func seedPackages(ctx context.Context, tx *sql.Tx, ids map[int64]int64) error {
	fmt.Println("Seeding packages...")
	for _, pkg := range bundle.SamplePackages() {
		var pkgID int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO packages (name, description, total_price) VALUES ($1, $2, $3) RETURNING id`,
			pkg.Name, pkg.Description, pkg.TotalPrice.StringFixed(2),
		).Scan(&pkgID)
		if err != nil {
			return fmt.Errorf("insert package %q: %w", pkg.Name, err)
		}
		for _, it := range pkg.Items {
			productID, ok := ids[it.ProductID]
			if !ok {
				return fmt.Errorf("package %q references unknown sample product %d", pkg.Name, it.ProductID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO package_items (package_id, product_id, quantity, product_name, product_price, product_category)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				pkgID, productID, it.Quantity, it.ProductName, it.ProductPrice.StringFixed(2), it.ProductCategory,
			); err != nil {
				return fmt.Errorf("insert item for %q: %w", pkg.Name, err)
			}
		}
		fmt.Printf("  %s: %d items, total %s\n", pkg.Name, len(pkg.Items), pkg.TotalPrice.StringFixed(2))
	}
	return nil
}
