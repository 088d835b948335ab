package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/id"
	"stockpost/internal/domain/audit"
)

// CompressionAlgo names the codec a stored changes payload uses.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const auditCompressThreshold = 10 * 1024

// AuditService writes document lifecycle records to sys_audit. It
// implements audit.Sink for the document services.
type AuditService struct {
	txManager *TxManager
	encoder   *zstd.Encoder
}

var _ audit.Sink = (*AuditService)(nil)

// NewAuditService creates the sink backed by the given transaction manager.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &AuditService{txManager: txManager, encoder: encoder}, nil
}

// Record implements audit.Sink. The actor is taken from the context;
// anonymous writes keep empty user fields. When Record runs inside a
// transaction the audit row shares its fate.
func (s *AuditService) Record(ctx context.Context, entityType string, entityID id.ID, action audit.Action, payload map[string]any) error {
	var changes []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		changes = data
	}

	var userID, userEmail string
	if user := appctx.GetUser(ctx); user != nil {
		userID = user.UserID
		userEmail = user.Email
	}

	algo := CompressionNone
	var compressed []byte
	if len(changes) > auditCompressThreshold {
		compressed = s.encoder.EncodeAll(changes, nil)
		changes = nil
		algo = CompressionZstd
	}

	const sql = `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		id.New(), entityType, entityID, action, userID, userEmail,
		changes, compressed, algo, time.Now().UTC(),
	)
	return err
}
