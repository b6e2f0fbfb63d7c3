package chest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chest state.
type Repository interface {
	Create(ctx context.Context, chest Chest) error
	Get(ctx context.Context, addr common.Address) (Chest, error)
	List(ctx context.Context) ([]Chest, error)
	SetBuried(ctx context.Context, addr common.Address, buried bool) error
}

// PostgresRepository stores chests in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a chest record.
func (r *PostgresRepository) Create(ctx context.Context, chest Chest) error {
	tag, err := r.db.Exec(ctx, `INSERT INTO chests (address, token, owner, buried, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (address) DO NOTHING`,
		chest.Address.Bytes(), chest.Token.Bytes(), chest.Owner.Bytes(), chest.Buried, chest.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", chest.Address.Hex(), ErrExists)
	}
	return nil
}

// Get fetches a chest by address.
func (r *PostgresRepository) Get(ctx context.Context, addr common.Address) (Chest, error) {
	row := r.db.QueryRow(ctx, `SELECT address, token, owner, buried, created_at
        FROM chests WHERE address = $1`, addr.Bytes())
	chest, err := scanChest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chest{}, fmt.Errorf("%s: %w", addr.Hex(), ErrNotFound)
	}
	return chest, err
}

// List returns every chest ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Chest, error) {
	rows, err := r.db.Query(ctx, `SELECT address, token, owner, buried, created_at
        FROM chests ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chest
	for rows.Next() {
		chest, err := scanChest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chest)
	}
	return out, rows.Err()
}

// SetBuried updates the buried flag.
func (r *PostgresRepository) SetBuried(ctx context.Context, addr common.Address, buried bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE chests SET buried = $1 WHERE address = $2`, buried, addr.Bytes())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrNotFound)
	}
	return nil
}

func scanChest(row pgx.Row) (Chest, error) {
	var (
		address, token, owner []byte
		createdAt             time.Time
		chest                 Chest
	)
	if err := row.Scan(&address, &token, &owner, &chest.Buried, &createdAt); err != nil {
		return Chest{}, err
	}
	chest.Address = common.BytesToAddress(address)
	chest.Token = common.BytesToAddress(token)
	chest.Owner = common.BytesToAddress(owner)
	chest.CreatedAt = createdAt.UTC()
	return chest, nil
}
