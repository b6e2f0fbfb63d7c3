package token

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresService persists token metadata, balances and allowances so custody
// survives restarts alongside the ledger.
type PostgresService struct {
	db *pgxpool.Pool
}

// NewPostgresService constructs a Postgres-backed token service.
func NewPostgresService(db *pgxpool.Pool) *PostgresService {
	return &PostgresService{db: db}
}

// Deploy mints the whole supply to the deployer.
func (s *PostgresService) Deploy(ctx context.Context, deployer common.Address, symbol string, decimals uint8, supply *uint256.Int) (Token, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Token{}, ErrInvalidSymbol
	}
	if deployer == (common.Address{}) {
		return Token{}, ErrZeroAddress
	}
	if supply == nil {
		supply = new(uint256.Int)
	}
	t := Token{
		Address:     deriveAddress(deployer, symbol),
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: new(uint256.Int).Set(supply),
		Deployer:    deployer,
	}
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO tokens (address, symbol, decimals, total_supply, deployer)
            VALUES ($1, $2, $3, $4::numeric, $5)`,
			t.Address.Bytes(), t.Symbol, int16(t.Decimals), t.TotalSupply.Dec(), t.Deployer.Bytes()); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO token_balances (token, holder, balance) VALUES ($1, $2, $3::numeric)`,
			t.Address.Bytes(), deployer.Bytes(), supply.Dec())
		return err
	})
	if err != nil {
		return Token{}, err
	}
	return t, nil
}

func (s *PostgresService) Get(ctx context.Context, addr common.Address) (Token, error) {
	return getToken(ctx, s.db, addr)
}

func (s *PostgresService) IsToken(ctx context.Context, addr common.Address) bool {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tokens WHERE address = $1)`, addr.Bytes()).Scan(&exists); err != nil {
		return false
	}
	return exists
}

func (s *PostgresService) Assets(ctx context.Context) ([]common.Address, error) {
	rows, err := s.db.Query(ctx, `SELECT address FROM tokens ORDER BY address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		out = append(out, common.BytesToAddress(raw))
	}
	return out, rows.Err()
}

func (s *PostgresService) BalanceOf(ctx context.Context, token, holder common.Address) (*uint256.Int, error) {
	if _, err := getToken(ctx, s.db, token); err != nil {
		return nil, err
	}
	return readAmount(ctx, s.db, `SELECT COALESCE((SELECT balance::text FROM token_balances
        WHERE token = $1 AND holder = $2), '0')`, token.Bytes(), holder.Bytes())
}

func (s *PostgresService) Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error) {
	if _, err := getToken(ctx, s.db, token); err != nil {
		return nil, err
	}
	return readAmount(ctx, s.db, `SELECT COALESCE((SELECT amount::text FROM token_allowances
        WHERE token = $1 AND owner = $2 AND spender = $3), '0')`, token.Bytes(), owner.Bytes(), spender.Bytes())
}

func (s *PostgresService) Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		meta, err := getToken(ctx, tx, token)
		if err != nil {
			return err
		}
		return moveBalance(ctx, tx, meta, from, to, amount)
	})
}

func (s *PostgresService) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		meta, err := getToken(ctx, tx, token)
		if err != nil {
			return err
		}
		allowed, err := readAmount(ctx, tx, `SELECT amount::text FROM token_allowances
            WHERE token = $1 AND owner = $2 AND spender = $3 FOR UPDATE`, token.Bytes(), from.Bytes(), spender.Bytes())
		if errors.Is(err, pgx.ErrNoRows) {
			allowed, err = new(uint256.Int), nil
		}
		if err != nil {
			return err
		}
		if allowed.Lt(amount) {
			return fmt.Errorf("%s approved %s of %s: %w", spender.Hex(), allowed.Dec(), amount.Dec(), ErrInsufficientAllowance)
		}
		if err := moveBalance(ctx, tx, meta, from, to, amount); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE token_allowances SET amount = $4::numeric
            WHERE token = $1 AND owner = $2 AND spender = $3`,
			token.Bytes(), from.Bytes(), spender.Bytes(), new(uint256.Int).Sub(allowed, amount).Dec())
		return err
	})
}

func (s *PostgresService) Approve(ctx context.Context, token, owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, err := getToken(ctx, s.db, token); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `INSERT INTO token_allowances (token, owner, spender, amount)
        VALUES ($1, $2, $3, $4::numeric)
        ON CONFLICT (token, owner, spender) DO UPDATE SET amount = EXCLUDED.amount`,
		token.Bytes(), owner.Bytes(), spender.Bytes(), amount.Dec())
	return err
}

func (s *PostgresService) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getToken(ctx context.Context, q querier, addr common.Address) (Token, error) {
	var (
		symbol   string
		decimals int16
		supply   string
		deployer []byte
	)
	err := q.QueryRow(ctx, `SELECT symbol, decimals, total_supply::text, deployer FROM tokens WHERE address = $1`,
		addr.Bytes()).Scan(&symbol, &decimals, &supply, &deployer)
	if errors.Is(err, pgx.ErrNoRows) {
		return Token{}, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownToken)
	}
	if err != nil {
		return Token{}, err
	}
	total, err := parseAmount(supply)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Address:     addr,
		Symbol:      symbol,
		Decimals:    uint8(decimals),
		TotalSupply: total,
		Deployer:    common.BytesToAddress(deployer),
	}, nil
}

// moveBalance locks both balance rows in address order and applies the transfer.
func moveBalance(ctx context.Context, tx pgx.Tx, meta Token, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	first, second := from, to
	if bytes.Compare(first.Bytes(), second.Bytes()) > 0 {
		first, second = second, first
	}
	balances := make(map[common.Address]*uint256.Int, 2)
	for _, holder := range []common.Address{first, second} {
		if _, seen := balances[holder]; seen {
			continue
		}
		if _, err := tx.Exec(ctx, `INSERT INTO token_balances (token, holder, balance)
            VALUES ($1, $2, 0) ON CONFLICT (token, holder) DO NOTHING`, meta.Address.Bytes(), holder.Bytes()); err != nil {
			return err
		}
		bal, err := readAmount(ctx, tx, `SELECT balance::text FROM token_balances
            WHERE token = $1 AND holder = $2 FOR UPDATE`, meta.Address.Bytes(), holder.Bytes())
		if err != nil {
			return err
		}
		balances[holder] = bal
	}

	fromBal := balances[from]
	if fromBal.Lt(amount) {
		return fmt.Errorf("%s holds %s of %s %s: %w", from.Hex(), fromBal.Dec(), amount.Dec(), meta.Symbol, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toAfter, overflow := new(uint256.Int).AddOverflow(balances[to], amount)
	if overflow {
		return ErrOverflow
	}
	for holder, bal := range map[common.Address]*uint256.Int{
		from: new(uint256.Int).Sub(fromBal, amount),
		to:   toAfter,
	} {
		if _, err := tx.Exec(ctx, `UPDATE token_balances SET balance = $3::numeric
            WHERE token = $1 AND holder = $2`, meta.Address.Bytes(), holder.Bytes(), bal.Dec()); err != nil {
			return err
		}
	}
	return nil
}

func readAmount(ctx context.Context, q querier, query string, args ...any) (*uint256.Int, error) {
	var raw string
	if err := q.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return nil, err
	}
	return parseAmount(raw)
}

func parseAmount(raw string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode stored amount %q: %w", raw, err)
	}
	return v, nil
}
