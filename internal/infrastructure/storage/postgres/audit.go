package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/audit"
)

// CompressionAlgo specifies how an audit payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditLog stores audit entries in sys_audit.
type AuditLog struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewAuditLog creates an audit log. A threshold <= 0 uses the default.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditLog{
		txManager: txManager,
		encoder:   encoder,
		decoder:   decoder,
		threshold: threshold,
	}, nil
}

// Compress returns the stored form of a payload.
func (l *AuditLog) Compress(payload []byte) ([]byte, CompressionAlgo) {
	if len(payload) <= l.threshold {
		return payload, CompressionNone
	}
	return l.encoder.EncodeAll(payload, nil), CompressionZstd
}

// Decompress restores a payload written by Compress.
func (l *AuditLog) Decompress(stored []byte, algo CompressionAlgo) ([]byte, error) {
	switch algo {
	case CompressionNone, "":
		return stored, nil
	case CompressionZstd:
		out, err := l.decoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress changes: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", algo)
	}
}

const sqlInsertAudit = `
	INSERT INTO sys_audit (
		id, entity_type, entity_id, entity_code, action, user_id, user_name,
		changes, changes_compressed, compression_algo, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Record inserts an entry within the current transaction.
func (l *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}

	stored, algo := l.Compress(e.Changes)
	var plain json.RawMessage
	var compressed []byte
	if algo == CompressionNone {
		plain = stored
	} else {
		compressed = stored
	}

	_, err := l.txManager.GetQuerier(ctx).Exec(ctx, sqlInsertAudit,
		e.ID, e.EntityType, e.EntityID, e.EntityCode, string(e.Action), e.UserID, e.UserName,
		plain, compressed, string(algo), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const sqlAuditHistory = `
	SELECT id, entity_type, entity_id, entity_code, action, user_id, user_name,
		changes, changes_compressed, compression_algo, created_at
	FROM sys_audit
	WHERE entity_type = $1 AND entity_id = $2
	ORDER BY created_at DESC, id DESC
	LIMIT $3`

// History returns the newest entries of one entity first.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, sqlAuditHistory, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			action     string
			plain      []byte
			compressed []byte
			algo       string
		)
		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.EntityCode, &action, &e.UserID, &e.UserName,
			&plain, &compressed, &algo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		if CompressionAlgo(algo) == CompressionZstd {
			if plain, err = l.Decompress(compressed, CompressionZstd); err != nil {
				return nil, err
			}
		}
		e.Changes = plain
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
