package products

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"

	"github.com/mbd888/trackrate/internal/idgen"
)

// PostgresStore persists the catalog in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(40) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			image TEXT NOT NULL DEFAULT '',
			rating_no INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT chk_product_price CHECK (price > 0)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)
	`)
	if err != nil {
		return fmt.Errorf("failed to create products index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Product) (*Product, error) {
	out := *p
	out.ID = idgen.WithPrefix("prd_")
	if out.RatingNo == 0 {
		out.RatingNo = seedRatingNo()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, price, image, rating_no)
		VALUES ($1, $2, $3::NUMERIC(12,2), $4, $5)
		RETURNING created_at
	`, out.ID, out.Name, out.Price, out.Image, out.RatingNo).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, image, rating_no, created_at
		FROM products
		WHERE id = $1
	`, id)

	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.RatingNo, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, image, rating_no, created_at
		FROM products
		ORDER BY price ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Image, &p.RatingNo, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, p *Product) (*Product, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3::NUMERIC(12,2), image = $4
		WHERE id = $1
	`, p.ID, p.Name, p.Price, p.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrProductNotFound
	}
	return s.Get(ctx, p.ID)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// Displayed review counts start at a believable number rather than zero.
func seedRatingNo() int {
	return 100 + rand.Intn(9900)
}
