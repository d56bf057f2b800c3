package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/pkg/apperror"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// DocumentServiceImpl implements ports.DocumentService.
type DocumentServiceImpl struct {
	repo         ports.DocumentRepository
	maxBytes     int64
	allowedTypes []string
	log          zerolog.Logger
	now          func() time.Time
}

// NewDocumentService creates a document store that accepts at most maxBytes
// per upload, sniffed as one of allowedTypes.
func NewDocumentService(repo ports.DocumentRepository, maxBytes int64, allowedTypes []string, log zerolog.Logger) *DocumentServiceImpl {
	return &DocumentServiceImpl{
		repo:         repo,
		maxBytes:     maxBytes,
		allowedTypes: allowedTypes,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the bytes under their SHA-256 and records the seller as an owner.
// The declared content type is only a hint; the sniffed type decides.
func (s *DocumentServiceImpl) Upload(ctx context.Context, req ports.DocumentUpload) (*domain.IdentityDocument, error) {
	if !req.Kind.Valid() {
		return nil, apperror.ValidationFields("invalid document upload", map[string]string{
			"kind": "must be one of: GOVERNMENT_ID, PROOF_OF_ADDRESS",
		})
	}
	if declared := baseMediaType(req.ContentType); declared != "" && declared != "application/octet-stream" && !s.allowed(declared) {
		return nil, apperror.ErrDocumentType(declared)
	}

	content, err := io.ReadAll(io.LimitReader(req.Body, s.maxBytes+1))
	if err != nil {
		return nil, apperror.Validation("document body could not be read")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, apperror.ErrDocumentTooLarge(humanBytes(s.maxBytes))
	}
	if len(content) == 0 {
		return nil, apperror.Validation("document is empty")
	}

	detected := mimetype.Detect(content)
	contentType := ""
	for _, t := range s.allowedTypes {
		if detected.Is(t) {
			contentType = t
			break
		}
	}
	if contentType == "" {
		return nil, apperror.ErrDocumentType(baseMediaType(detected.String()))
	}

	sum := sha256.Sum256(content)
	doc := &domain.IdentityDocument{
		Ref:         hex.EncodeToString(sum[:]),
		SellerID:    req.SellerID,
		Kind:        req.Kind,
		ContentType: contentType,
		Size:        int64(len(content)),
		CreatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, doc, content); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save document: %w", err))
	}

	s.log.Info().
		Str("seller_id", req.SellerID).
		Str("document_ref", doc.Ref).
		Str("kind", string(doc.Kind)).
		Int64("size", doc.Size).
		Msg("document stored")

	return doc, nil
}

// Resolve returns the document only when sellerID uploaded ref as kind.
func (s *DocumentServiceImpl) Resolve(ctx context.Context, sellerID, ref string, kind domain.DocumentKind) (*domain.IdentityDocument, error) {
	doc, err := s.repo.GetOwned(ctx, sellerID, strings.ToLower(ref), kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve document: %w", err))
	}
	if doc == nil {
		return nil, apperror.Validation(fmt.Sprintf("document %s is not an uploaded %s of this seller", ref, kind))
	}
	return doc, nil
}

func (s *DocumentServiceImpl) allowed(contentType string) bool {
	for _, t := range s.allowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func humanBytes(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
