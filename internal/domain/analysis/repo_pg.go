package analysis

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

const alertCols = `id, patient_id, rule_id, rule_name, severity, message, recommendation,
	evidence, acknowledged, acknowledged_at, created_at`

func scanAlert(row pgx.Row) (*PatientAlert, error) {
	var a PatientAlert
	err := row.Scan(&a.ID, &a.PatientID, &a.RuleID, &a.RuleName, &a.Severity, &a.Message,
		&a.Recommendation, &a.Evidence, &a.Acknowledged, &a.AcknowledgedAt, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) CreateBatch(ctx context.Context, alerts []*PatientAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range alerts {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO patient_alert (id, patient_id, rule_id, rule_name, severity, message,
				recommendation, evidence, acknowledged, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			a.ID, a.PatientID, a.RuleID, a.RuleName, a.Severity, a.Message,
			a.Recommendation, a.Evidence, a.Acknowledged, a.CreatedAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range alerts {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientAlert, error) {
	return scanAlert(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM patient_alert WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*PatientAlert, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_alert WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+alertCols+` FROM patient_alert
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*PatientAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Acknowledge(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_alert SET acknowledged = TRUE, acknowledged_at = NOW()
		WHERE id = $1 AND NOT acknowledged`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or already acknowledged; distinguish for the caller.
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM patient_alert WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}
	return nil
}

func (r *repoPG) AcknowledgeAllForPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_alert SET acknowledged = TRUE, acknowledged_at = NOW()
		WHERE patient_id = $1 AND NOT acknowledged`, patientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
