package rules

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medguard/medguard/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, name, rule_type, description, severity, category, tags,
	condition, action, active, created_at, updated_at`

func scanRule(row pgx.Row) (*ClinicalRule, error) {
	var rule ClinicalRule
	err := row.Scan(&rule.ID, &rule.Name, &rule.RuleType, &rule.Description, &rule.Severity,
		&rule.Category, &rule.Tags, &rule.Condition, &rule.Action, &rule.Active,
		&rule.CreatedAt, &rule.UpdatedAt)
	return &rule, err
}

func (r *repoPG) Create(ctx context.Context, rule *ClinicalRule) error {
	rule.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_rule (id, name, rule_type, description, severity, category, tags,
			condition, action, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rule.ID, rule.Name, rule.RuleType, rule.Description, rule.Severity, rule.Category,
		rule.Tags, rule.Condition, rule.Action, rule.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicalRule, error) {
	return scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM clinical_rule WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rule *ClinicalRule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_rule SET name=$2, rule_type=$3, description=$4, severity=$5, category=$6,
			tags=$7, condition=$8, action=$9, active=$10, updated_at=NOW()
		WHERE id = $1`,
		rule.ID, rule.Name, rule.RuleType, rule.Description, rule.Severity, rule.Category,
		rule.Tags, rule.Condition, rule.Action, rule.Active)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinical_rule WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*ClinicalRule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clinical_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM clinical_rule ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClinicalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rule)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListActive(ctx context.Context) ([]*ClinicalRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM clinical_rule WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ClinicalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rule)
	}
	return items, rows.Err()
}
