package postgres

import (
	"context"
	"errors"
	"fmt"

	"seller-payout-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// DocumentRepo implements ports.DocumentRepository. Bytes are keyed by
// content digest, so re-uploading a file only adds an ownership row.
type DocumentRepo struct {
	pool Pool
}

// NewDocumentRepo creates a PostgreSQL-backed document repository.
func NewDocumentRepo(pool Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Save stores content under doc.Ref and records the seller's ownership.
func (r *DocumentRepo) Save(ctx context.Context, doc *domain.IdentityDocument, content []byte) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin document save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	insertDoc := `INSERT INTO identity_documents (ref, content_type, size, content, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (ref) DO NOTHING`
	if _, err := tx.Exec(ctx, insertDoc, doc.Ref, doc.ContentType, doc.Size, content, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	insertOwner := `INSERT INTO document_owners (ref, seller_id, kind, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, insertOwner, doc.Ref, doc.SellerID, doc.Kind, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document save: %w", err)
	}
	return nil
}

// GetOwned returns the document only if sellerID uploaded it as kind.
func (r *DocumentRepo) GetOwned(ctx context.Context, sellerID, ref string, kind domain.DocumentKind) (*domain.IdentityDocument, error) {
	query := `SELECT d.ref, o.seller_id, o.kind, d.content_type, d.size, o.created_at
		FROM document_owners o JOIN identity_documents d ON d.ref = o.ref
		WHERE o.seller_id = $1 AND o.ref = $2 AND o.kind = $3`

	doc := &domain.IdentityDocument{}
	err := r.pool.QueryRow(ctx, query, sellerID, ref, kind).Scan(
		&doc.Ref, &doc.SellerID, &doc.Kind, &doc.ContentType, &doc.Size, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get owned document: %w", err)
	}
	return doc, nil
}
