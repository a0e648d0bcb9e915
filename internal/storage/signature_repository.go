package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/think-in-universe/nearai-cloud-server/internal/models"
)

// SignatureRepository persists chat signatures so later lookups skip the
// replica fan-out.
type SignatureRepository struct {
	db *DB
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Get returns the signature stored for chatID under any of modelIDs.
func (r *SignatureRepository) Get(ctx context.Context, modelIDs []string, chatID string, algo models.SigningAlgo) (*models.SignatureRecord, error) {
	if len(modelIDs) == 0 {
		return nil, ErrSignatureNotFound
	}

	query, args, err := sqlx.In(`
		SELECT model_id, chat_id, model, text, signature, signing_address, signing_algo
		FROM "nearAi_MessageSignatures"
		WHERE chat_id = ? AND signing_algo = ? AND model_id IN (?)
		ORDER BY created_at ASC
		LIMIT 1
	`, chatID, string(algo), modelIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature query: %w", err)
	}

	var rec models.SignatureRecord
	if err := r.db.conn.GetContext(ctx, &rec, r.db.rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	return &rec, nil
}

// Create stores rec. An existing row for the same key is left untouched.
func (r *SignatureRepository) Create(ctx context.Context, rec *models.SignatureRecord) error {
	return r.insert(ctx, r.db.conn, rec)
}

// CreateBatch stores recs in one transaction.
func (r *SignatureRepository) CreateBatch(ctx context.Context, recs []*models.SignatureRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := r.insert(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SignatureRepository) insert(ctx context.Context, ext sqlx.ExtContext, rec *models.SignatureRecord) error {
	query := r.db.rebind(`
		INSERT INTO "nearAi_MessageSignatures"
			(model_id, chat_id, model, text, signature, signing_address, signing_algo)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (model_id, chat_id, signing_algo) DO NOTHING
	`)

	_, err := ext.ExecContext(ctx, query,
		rec.ModelID, rec.ChatID, rec.Model,
		rec.Text, rec.Signature.Signature, rec.SigningAddress, string(rec.SigningAlgo),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}
