package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	apperrors "github.com/umalmyha/customers-api/internal/errors"
	"github.com/umalmyha/customers-api/internal/model"
)

// SQLSTATE class of integrity constraint violations
const integrityConstraintViolationClass = "23"

type CustomerRepository interface {
	FindAll(context.Context) ([]*model.Customer, error)
	Save(context.Context, *model.Customer) error
}

type postgresCustomerRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCustomerRepository(p *pgxpool.Pool) CustomerRepository {
	return &postgresCustomerRepository{pool: p}
}

func (r *postgresCustomerRepository) FindAll(ctx context.Context) ([]*model.Customer, error) {
	customers := make([]*model.Customer, 0)
	q := "SELECT id, name, email, created_at FROM customers"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers - %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer - %w", err)
		}
		customers = append(customers, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read customers - %w", err)
	}
	return customers, nil
}

// Save inserts customer without id and assigns generated one, customer with id is upserted
func (r *postgresCustomerRepository) Save(ctx context.Context, c *model.Customer) error {
	var row pgx.Row
	if c.ID == 0 {
		q := "INSERT INTO customers(name, email) VALUES($1, $2) RETURNING id, created_at"
		row = r.pool.QueryRow(ctx, q, c.Name, c.Email)
	} else {
		q := `INSERT INTO customers(id, name, email) VALUES($1, $2, $3)
			  ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
			  RETURNING id, created_at`
		row = r.pool.QueryRow(ctx, q, c.ID, c.Name, c.Email)
	}

	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return translateError(err)
	}
	return nil
}

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, integrityConstraintViolationClass) {
		return apperrors.NewConstraintViolationErr(pgErr.ConstraintName, pgErr.Message)
	}
	return fmt.Errorf("failed to save customer - %w", err)
}
