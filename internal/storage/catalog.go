package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ropastore/internal/config"
	"ropastore/internal/core"
	"ropastore/internal/log"
)

// ErrCategoryInUse is returned by DeleteCategory under the restrict policy
// when products still reference the category.
var ErrCategoryInUse = errors.New("category still has products")

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		c.Name, c.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, fmt.Errorf("%w: %s", core.ErrDuplicateName, c.Name)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id

	s.logger.InfoContext(ctx, "Category created", log.FieldCategoryID, id, "name", c.Name)
	return c, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, c.Description, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateName, c.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", c.ID, core.ErrNotFound)
	}
	return nil
}

// DeleteCategory removes a category according to the configured policy.
// Restrict refuses when products reference it; detach nulls the references
// inside the same transaction before deleting.
func (s *Store) DeleteCategory(ctx context.Context, id int64, policy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE category_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("count category products: %w", err)
	}

	if count > 0 {
		switch policy {
		case config.CategoryDeleteDetach:
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET category_id = NULL WHERE category_id = ?`, id); err != nil {
				return fmt.Errorf("detach category products: %w", err)
			}
		default:
			return fmt.Errorf("%w: %d products", ErrCategoryInUse, count)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldCategoryID, id,
		"policy", policy,
		"detached_products", count)
	return nil
}

// ProductFilter narrows ListProducts. Zero values mean "no filter".
type ProductFilter struct {
	Search       string
	CategoryID   int64
	FeaturedOnly bool
	InStockOnly  bool
	Limit        int
}

const productColumns = `id, name, description, price_cents, stock, image, featured, created_at, category_id`

func (s *Store) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price_cents, stock, image, featured, created_at, category_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Price.Cents, p.Stock, p.Image, p.Featured, formatTime(now), p.CategoryID)
	if err != nil {
		return core.Product{}, fmt.Errorf("insert product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Product{}, fmt.Errorf("product insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now

	s.logger.InfoContext(ctx, "Product created",
		log.FieldProductID, id,
		"name", p.Name,
		"price_cents", p.Price.Cents,
		"stock", p.Stock)
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, fmt.Errorf("product %d: %w", id, core.ErrProductNotFound)
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]core.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any

	if f.Search != "" {
		query += ` AND LOWER(name) LIKE '%' || LOWER(?) || '%'`
		args = append(args, f.Search)
	}
	if f.CategoryID != 0 {
		query += ` AND category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.FeaturedOnly {
		query += ` AND featured = 1`
	}
	if f.InStockOnly {
		query += ` AND stock > 0`
	}
	query += ` ORDER BY name`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) UpdateProduct(ctx context.Context, p core.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price_cents = ?, stock = ?, image = ?, featured = ?, category_id = ?
		 WHERE id = ?`,
		p.Name, p.Description, p.Price.Cents, p.Stock, p.Image, p.Featured, p.CategoryID, p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, core.ErrProductNotFound)
	}
	return nil
}

// DeleteProduct removes a product. Products referenced by sale lines are
// protected by the schema; the constraint error is returned wrapped.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, core.ErrProductNotFound)
	}

	s.logger.InfoContext(ctx, "Product deleted", log.FieldProductID, id)
	return nil
}

// RecentProducts returns the newest catalog entries, newest first.
func (s *Store) RecentProducts(ctx context.Context, limit int) ([]core.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// LowStockProducts returns products at or below the threshold, lowest first.
func (s *Store) LowStockProducts(ctx context.Context, threshold int) ([]core.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock <= ? ORDER BY stock, name`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	defer rows.Close()

	var products []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (core.Product, error) {
	var (
		p         core.Product
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price.Cents, &p.Stock,
		&p.Image, &p.Featured, &createdAt, &p.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Product{}, err
		}
		return core.Product{}, fmt.Errorf("scan product: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return core.Product{}, err
	}
	p.CreatedAt = t
	return p, nil
}
