package service

import (
	"context"
	"errors"
	"testing"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	var saved *domain.AuditLog
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			saved = entry
			return nil
		},
	)

	seller := "seller-42"
	svc.Log(context.Background(), &domain.AuditLog{
		SellerID:     &seller,
		Actor:        seller,
		Action:       domain.AuditActionWithdrawalRequest,
		ResourceType: "withdrawal",
		ResourceID:   uuid.NewString(),
		IPAddress:    "127.0.0.1",
	})
	svc.Wait()

	if assert.NotNil(t, saved) {
		assert.Equal(t, domain.AuditActionWithdrawalRequest, saved.Action)
		assert.NotEqual(t, uuid.Nil, saved.ID, "id is assigned")
		assert.False(t, saved.CreatedAt.IsZero(), "timestamp is assigned")
	}
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc.Log(context.Background(), &domain.AuditLog{Actor: "settlement-rail", Action: domain.AuditActionSettlement})
	svc.Wait()
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	svc.Log(context.Background(), &domain.AuditLog{Actor: "seller-1", Action: domain.AuditActionKYCSubmit})
	svc.Wait()
}
