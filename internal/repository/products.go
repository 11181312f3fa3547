package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/storefront/internal/model"
)

const productColumns = `id, name, brand, description, notes, category, price, stock, image,
	rating, num_reviews, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Description, &p.Notes, &p.Category, &p.Price, &p.Stock, &p.Image,
		&p.Rating, &p.NumReviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func notesOrEmpty(notes []string) []string {
	if notes == nil {
		return []string{}
	}
	return notes
}

// CreateProduct сохраняет новый товар и возвращает его с присвоенным идентификатором.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	created, err := scanProduct(r.pool.QueryRow(ctx,
		`INSERT INTO products (name, brand, description, notes, category, price, stock, image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+productColumns,
		p.Name, p.Brand, p.Description, notesOrEmpty(p.Notes), p.Category, p.Price, p.Stock, p.Image,
	))
	if err != nil {
		return nil, storeError("create product", err)
	}
	return created, nil
}

// ReplaceProducts атомарно заменяет весь каталог. Используется при начальном наполнении.
func (r *PostgresRepository) ReplaceProducts(ctx context.Context, products []model.Product) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, storeError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM products`); err != nil {
		return 0, storeError("delete products", err)
	}

	for _, p := range products {
		_, err := tx.Exec(ctx,
			`INSERT INTO products (name, brand, description, notes, category, price, stock, image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.Name, p.Brand, p.Description, notesOrEmpty(p.Notes), p.Category, p.Price, p.Stock, p.Image,
		)
		if err != nil {
			return 0, storeError("insert product", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storeError("commit tx", err)
	}

	return len(products), nil
}

// GetProduct возвращает товар вместе с отзывами.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, storeError("get product", err)
	}

	reviews, err := r.getReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Reviews = reviews

	return p, nil
}

func (r *PostgresRepository) getReviews(ctx context.Context, productID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pr.id, pr.user_id, u.name, pr.rating, pr.comment, pr.created_at
		 FROM product_reviews pr
		 JOIN users u ON u.id = pr.user_id
		 WHERE pr.product_id = $1
		 ORDER BY pr.created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, storeError("select reviews", err)
	}
	defer rows.Close()

	reviews := []model.Review{}
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return reviews, nil
}

// GetProductsByIDs возвращает найденные товары, индексированные по идентификатору.
// Отсутствующие идентификаторы просто не попадают в результат.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, storeError("select products", err)
	}
	defer rows.Close()

	res := make(map[int64]model.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return res, nil
}

// ListProducts возвращает товары, удовлетворяющие фильтру, начиная с самых новых.
func (r *PostgresRepository) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE ($1 = '' OR name ILIKE $2)
		   AND ($3 = '' OR brand = $3)
		 ORDER BY created_at DESC, id DESC`,
		filter.Query, containsPattern(filter.Query), filter.Brand,
	)
	if err != nil {
		return nil, storeError("select products", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("rows error", err)
	}

	return products, nil
}

// UpdateProduct применяет частичное обновление: поля со значением nil остаются прежними.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, id int64, patch model.ProductPatch) (*model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`UPDATE products SET
		     name        = COALESCE($2, name),
		     brand       = COALESCE($3, brand),
		     description = COALESCE($4, description),
		     notes       = COALESCE($5, notes),
		     category    = COALESCE($6, category),
		     price       = COALESCE($7, price),
		     stock       = COALESCE($8, stock),
		     image       = COALESCE($9, image),
		     updated_at  = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, patch.Name, patch.Brand, patch.Description, patch.Notes, patch.Category, patch.Price, patch.Stock, patch.Image,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, storeError("update product", err)
	}

	reviews, err := r.getReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Reviews = reviews

	return p, nil
}

// DeleteProduct безвозвратно удаляет товар. Заказы хранят собственные снимки цен и не затрагиваются.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return storeError("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// AddReview сохраняет отзыв и пересчитывает рейтинг товара в одной транзакции.
func (r *PostgresRepository) AddReview(ctx context.Context, productID int64, review model.Review) (*model.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO product_reviews (product_id, user_id, rating, comment) VALUES ($1, $2, $3, $4)`,
		productID, review.UserID, review.Rating, review.Comment,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return nil, ErrAlreadyReviewed
			case pgerrcode.ForeignKeyViolation:
				if pgErr.ConstraintName == "product_reviews_product_id_fkey" {
					return nil, ErrProductNotFound
				}
				return nil, ErrUserNotFound
			}
		}
		return nil, storeError("insert review", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET
		     num_reviews = s.cnt,
		     rating      = s.avg,
		     updated_at  = now()
		 FROM (SELECT count(*) AS cnt, COALESCE(avg(rating), 0)::double precision AS avg
		       FROM product_reviews WHERE product_id = $1) s
		 WHERE id = $1`,
		productID,
	)
	if err != nil {
		return nil, storeError("update rating", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	return r.GetProduct(ctx, productID)
}
