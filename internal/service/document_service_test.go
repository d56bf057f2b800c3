package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"
	"seller-payout-service/internal/core/ports/mocks"
	"seller-payout-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
)

func setupDocumentService(t *testing.T) (*DocumentServiceImpl, *mocks.MockDocumentRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDocumentRepository(ctrl)
	svc := NewDocumentService(repo, 64, []string{"image/jpeg", "image/png", "application/pdf"}, newTestLogger())
	svc.now = fixedClock
	return svc, repo
}

func TestDocumentService_Upload_ContentAddressed(t *testing.T) {
	svc, repo := setupDocumentService(t)
	ctx := context.Background()

	sum := sha256.Sum256(pngBytes)
	wantRef := hex.EncodeToString(sum[:])

	repo.EXPECT().Save(ctx, gomock.Any(), pngBytes).DoAndReturn(
		func(_ context.Context, doc *domain.IdentityDocument, _ []byte) error {
			assert.Equal(t, wantRef, doc.Ref)
			assert.Equal(t, "seller-1", doc.SellerID)
			return nil
		})

	doc, err := svc.Upload(ctx, ports.DocumentUpload{
		SellerID:    "seller-1",
		Kind:        domain.DocumentKindGovernmentID,
		ContentType: "image/png",
		Body:        strings.NewReader(string(pngBytes)),
	})
	require.NoError(t, err)
	assert.Equal(t, wantRef, doc.Ref)
	assert.Equal(t, "image/png", doc.ContentType)
	assert.Equal(t, int64(len(pngBytes)), doc.Size)
	assert.Equal(t, testNow, doc.CreatedAt)
}

func TestDocumentService_Upload_SniffsTypeOverDeclared(t *testing.T) {
	svc, repo := setupDocumentService(t)
	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	doc, err := svc.Upload(context.Background(), ports.DocumentUpload{
		SellerID:    "seller-1",
		Kind:        domain.DocumentKindProofOfAddress,
		ContentType: "application/octet-stream",
		Body:        strings.NewReader(string(pdfBytes)),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
}

func TestDocumentService_Upload_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		upload   ports.DocumentUpload
		wantCode string
	}{
		{
			name:     "unknown kind",
			upload:   ports.DocumentUpload{Kind: "SELFIE", Body: strings.NewReader(string(pngBytes))},
			wantCode: "VAL_001",
		},
		{
			name:     "declared type not accepted",
			upload:   ports.DocumentUpload{Kind: domain.DocumentKindGovernmentID, ContentType: "image/gif", Body: strings.NewReader(string(gifBytes))},
			wantCode: "DOC_002",
		},
		{
			name:     "sniffed type not accepted",
			upload:   ports.DocumentUpload{Kind: domain.DocumentKindGovernmentID, ContentType: "image/png", Body: strings.NewReader(string(gifBytes))},
			wantCode: "DOC_002",
		},
		{
			name:     "too large",
			upload:   ports.DocumentUpload{Kind: domain.DocumentKindGovernmentID, Body: strings.NewReader(strings.Repeat("a", 65))},
			wantCode: "DOC_001",
		},
		{
			name:     "empty",
			upload:   ports.DocumentUpload{Kind: domain.DocumentKindGovernmentID, Body: strings.NewReader("")},
			wantCode: "VAL_001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setupDocumentService(t)
			tt.upload.SellerID = "seller-1"

			doc, err := svc.Upload(context.Background(), tt.upload)
			assert.Nil(t, doc)
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
		})
	}
}

func TestDocumentService_Upload_ExactlyMaxBytesAccepted(t *testing.T) {
	svc, repo := setupDocumentService(t)
	svc.maxBytes = int64(len(pdfBytes))
	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.Upload(context.Background(), ports.DocumentUpload{
		SellerID: "seller-1",
		Kind:     domain.DocumentKindProofOfAddress,
		Body:     strings.NewReader(string(pdfBytes)),
	})
	assert.NoError(t, err)
}

func TestDocumentService_Upload_RepoError(t *testing.T) {
	svc, repo := setupDocumentService(t)
	repo.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := svc.Upload(context.Background(), ports.DocumentUpload{
		SellerID: "seller-1",
		Kind:     domain.DocumentKindGovernmentID,
		Body:     strings.NewReader(string(pngBytes)),
	})
	assert.Equal(t, "SYS_001", apperror.CodeOf(err))
}

func TestDocumentService_Resolve(t *testing.T) {
	svc, repo := setupDocumentService(t)
	ctx := context.Background()
	ref := strings.Repeat("ab", 32)
	owned := &domain.IdentityDocument{Ref: ref, SellerID: "seller-1", Kind: domain.DocumentKindGovernmentID}

	repo.EXPECT().GetOwned(ctx, "seller-1", ref, domain.DocumentKindGovernmentID).Return(owned, nil)
	doc, err := svc.Resolve(ctx, "seller-1", strings.ToUpper(ref), domain.DocumentKindGovernmentID)
	require.NoError(t, err)
	assert.Equal(t, owned, doc)

	repo.EXPECT().GetOwned(ctx, "seller-2", ref, domain.DocumentKindGovernmentID).Return(nil, nil)
	_, err = svc.Resolve(ctx, "seller-2", ref, domain.DocumentKindGovernmentID)
	assert.Equal(t, "VAL_001", apperror.CodeOf(err))
}
