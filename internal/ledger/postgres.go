package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists balances in PostgreSQL with a journal of every posting.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Balance returns the stored balance, zero when no row exists.
func (l *PostgresLedger) Balance(ctx context.Context, holder, asset common.Address) (*uint256.Int, error) {
	const query = `
        SELECT COALESCE((SELECT balance::text FROM ledger_balances
            WHERE holder = $1 AND asset = $2), '0')`
	var raw string
	if err := l.db.QueryRow(ctx, query, holder.Bytes(), asset.Bytes()).Scan(&raw); err != nil {
		return nil, err
	}
	return parseAmount(raw)
}

// Credit increases a balance inside a single transaction.
func (l *PostgresLedger) Credit(ctx context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrInvalidAmount
	}
	var updated *uint256.Int
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		bal, err := lockBalance(ctx, tx, holder, asset)
		if err != nil {
			return err
		}
		if updated, err = add(bal, amount); err != nil {
			return err
		}
		return post(ctx, tx, holder, asset, updated, KindCredit, amount)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Debit decreases a balance inside a single transaction.
func (l *PostgresLedger) Debit(ctx context.Context, holder, asset common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if amount == nil {
		return nil, ErrInvalidAmount
	}
	var updated *uint256.Int
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		bal, err := lockBalance(ctx, tx, holder, asset)
		if err != nil {
			return err
		}
		if updated, err = sub(bal, amount); err != nil {
			return err
		}
		return post(ctx, tx, holder, asset, updated, KindDebit, amount)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Move records a balanced posting between two holders of the same asset.
func (l *PostgresLedger) Move(ctx context.Context, from, to, asset common.Address, amount *uint256.Int) (MoveResult, error) {
	if amount == nil {
		return MoveResult{}, ErrInvalidAmount
	}
	var res MoveResult
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		// Lock rows in address order so concurrent opposite moves cannot deadlock.
		first, second := from, to
		if bytes.Compare(first.Bytes(), second.Bytes()) > 0 {
			first, second = second, first
		}
		balances := make(map[common.Address]*uint256.Int, 2)
		for _, holder := range []common.Address{first, second} {
			if _, seen := balances[holder]; seen {
				continue
			}
			bal, err := lockBalance(ctx, tx, holder, asset)
			if err != nil {
				return err
			}
			balances[holder] = bal
		}

		fromAfter, err := sub(balances[from], amount)
		if err != nil {
			return err
		}
		if from == to {
			res = MoveResult{FromBalance: balances[from], ToBalance: balances[to]}
			return nil
		}
		toAfter, err := add(balances[to], amount)
		if err != nil {
			return err
		}
		if err := post(ctx, tx, from, asset, fromAfter, KindMove, amount); err != nil {
			return err
		}
		if err := post(ctx, tx, to, asset, toAfter, KindMove, amount); err != nil {
			return err
		}
		res = MoveResult{FromBalance: fromAfter, ToBalance: toAfter}
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	return res, nil
}

// CreditAll credits several assets to one holder in a single transaction.
func (l *PostgresLedger) CreditAll(ctx context.Context, holder common.Address, postings []Posting) ([]*uint256.Int, error) {
	for _, p := range postings {
		if p.Amount == nil {
			return nil, ErrInvalidAmount
		}
	}
	assets := make([]common.Address, 0, len(postings))
	for _, p := range postings {
		assets = append(assets, p.Asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return bytes.Compare(assets[i].Bytes(), assets[j].Bytes()) < 0
	})

	out := make([]*uint256.Int, len(postings))
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		balances := make(map[common.Address]*uint256.Int, len(assets))
		for _, asset := range assets {
			if _, seen := balances[asset]; seen {
				continue
			}
			bal, err := lockBalance(ctx, tx, holder, asset)
			if err != nil {
				return err
			}
			balances[asset] = bal
		}
		for i, p := range postings {
			updated, err := add(balances[p.Asset], p.Amount)
			if err != nil {
				return fmt.Errorf("credit %s: %w", p.Asset.Hex(), err)
			}
			if err := post(ctx, tx, holder, p.Asset, updated, KindCredit, p.Amount); err != nil {
				return err
			}
			balances[p.Asset] = updated
			out[i] = updated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Total sums every holder balance for the asset.
func (l *PostgresLedger) Total(ctx context.Context, asset common.Address) (*uint256.Int, error) {
	const query = `SELECT COALESCE(SUM(balance), 0)::text FROM ledger_balances WHERE asset = $1`
	var raw string
	if err := l.db.QueryRow(ctx, query, asset.Bytes()).Scan(&raw); err != nil {
		return nil, err
	}
	return parseAmount(raw)
}

func (l *PostgresLedger) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockBalance makes sure the row exists, then locks it for the rest of the transaction.
func lockBalance(ctx context.Context, tx pgx.Tx, holder, asset common.Address) (*uint256.Int, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO ledger_balances (holder, asset, balance)
        VALUES ($1, $2, 0) ON CONFLICT (holder, asset) DO NOTHING`, holder.Bytes(), asset.Bytes()); err != nil {
		return nil, err
	}
	const query = `SELECT balance::text FROM ledger_balances WHERE holder = $1 AND asset = $2 FOR UPDATE`
	var raw string
	if err := tx.QueryRow(ctx, query, holder.Bytes(), asset.Bytes()).Scan(&raw); err != nil {
		return nil, err
	}
	return parseAmount(raw)
}

func post(ctx context.Context, tx pgx.Tx, holder, asset common.Address, balance *uint256.Int, kind string, amount *uint256.Int) error {
	if _, err := tx.Exec(ctx, `UPDATE ledger_balances SET balance = $3::numeric, updated_at = now()
        WHERE holder = $1 AND asset = $2`, holder.Bytes(), asset.Bytes(), balance.Dec()); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, holder, asset, kind, amount)
        VALUES ($1, $2, $3, $4, $5::numeric)`, uuid.New(), holder.Bytes(), asset.Bytes(), kind, amount.Dec())
	return err
}

func parseAmount(raw string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode stored balance %q: %w", raw, err)
	}
	return v, nil
}
