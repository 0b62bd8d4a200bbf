package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS grant_request (
	id                    BIGSERIAL PRIMARY KEY,
	easelite_id           TEXT        NOT NULL,
	display_name          TEXT        NOT NULL DEFAULT '',
	reason                TEXT        NOT NULL,
	amount                NUMERIC(20, 6) NOT NULL,
	owner_address         TEXT        NOT NULL,
	token_account_address TEXT        NOT NULL,
	status                TEXT        NOT NULL DEFAULT 'pending',
	signature             TEXT        NOT NULL DEFAULT '',
	reject_reason         TEXT        NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_grant_request_status ON grant_request (status, id);
`

const grantColumns = `id, easelite_id, display_name, reason, amount::TEXT, owner_address, token_account_address,
	status, signature, reject_reason, created_at, updated_at`

// PostgresStore grant 申请的持久化存储
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres 打开连接并校验可用
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema 建表（幂等）
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure grant_request schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, req NewGrantRequest) (*GrantRequest, error) {
	query := `
		INSERT INTO grant_request (easelite_id, display_name, reason, amount, owner_address, token_account_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + grantColumns

	row := p.db.QueryRowContext(ctx, query,
		req.EaseliteID, req.DisplayName, req.Reason, req.Amount, req.OwnerAddress, req.TokenAccountAddress)
	g, err := scanGrant(row)
	if err != nil {
		return nil, fmt.Errorf("insert grant request: %w", err)
	}
	return g, nil
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*GrantRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grant_request WHERE id = $1`, id)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grant request %d: %w", id, err)
	}
	return g, nil
}

func (p *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*GrantRequest, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`SELECT ` + grantColumns + ` FROM grant_request`)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		sb.WriteString(fmt.Sprintf(" WHERE status = $%d", len(args)))
	}
	sb.WriteString(" ORDER BY id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list grant requests: %w", err)
	}
	defer rows.Close()

	var out []*GrantRequest
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant request: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grant requests: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) MarkApproved(ctx context.Context, id int64, signature string) error {
	return p.transition(ctx, id, `
		UPDATE grant_request SET status = 'approved', signature = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'`, signature)
}

func (p *PostgresStore) MarkRejected(ctx context.Context, id int64, reason string) error {
	return p.transition(ctx, id, `
		UPDATE grant_request SET status = 'rejected', reject_reason = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'`, reason)
}

// transition 条件更新，只有 pending 状态会被修改；未命中时区分不存在与非 pending
func (p *PostgresStore) transition(ctx context.Context, id int64, query string, arg string) error {
	res, err := p.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("update grant request %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grant request %d: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var status string
	err = p.db.QueryRowContext(ctx, `SELECT status FROM grant_request WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGrantNotFound
	}
	if err != nil {
		return fmt.Errorf("check grant request %d: %w", id, err)
	}
	return fmt.Errorf("%w: status is %s", ErrNotPending, status)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row rowScanner) (*GrantRequest, error) {
	var (
		g      GrantRequest
		status string
	)
	err := row.Scan(&g.ID, &g.EaseliteID, &g.DisplayName, &g.Reason, &g.Amount, &g.OwnerAddress,
		&g.TokenAccountAddress, &status, &g.Signature, &g.RejectReason, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Status = Status(status)
	return &g, nil
}
