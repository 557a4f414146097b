package services

import (
	"context"
	"fmt"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

// CreditService moves pack credits and keeps the ledger in lockstep. Every
// method runs on the caller's DBTX so the credit movement commits or rolls
// back together with the lesson write it accompanies.
type CreditService struct {
	packsOn func(repository.DBTX) packStore
}

func NewCreditService() *CreditService {
	return &CreditService{
		packsOn: func(db repository.DBTX) packStore { return repository.NewPackRepository(db) },
	}
}

// Consume spends one credit for a booked lesson: used_credits +1, ledger -1.
func (s *CreditService) Consume(ctx context.Context, db repository.DBTX, tenantID, packID, lessonID string) error {
	packs := s.packsOn(db)
	if err := packs.AdjustUsed(ctx, packID, +1); err != nil {
		return fmt.Errorf("consume credit: %w", err)
	}
	return packs.AppendLedger(ctx, &models.PackLedgerEntry{
		TenantID: tenantID,
		PackID:   packID,
		LessonID: &lessonID,
		Delta:    -1,
		Reason:   models.LedgerReasonBooking,
	})
}

// Refund returns one credit after a cancellation: used_credits -1, ledger +1.
func (s *CreditService) Refund(ctx context.Context, db repository.DBTX, tenantID, packID, lessonID string) error {
	packs := s.packsOn(db)
	if err := packs.AdjustUsed(ctx, packID, -1); err != nil {
		return fmt.Errorf("refund credit: %w", err)
	}
	return packs.AppendLedger(ctx, &models.PackLedgerEntry{
		TenantID: tenantID,
		PackID:   packID,
		LessonID: &lessonID,
		Delta:    +1,
		Reason:   models.LedgerReasonCancelRefund,
	})
}

// ForfeitNoShow records that a no-show kept its consumed credit. The delta-0
// row changes no balance; it exists purely so the audit trail explains why
// the credit was never refunded.
func (s *CreditService) ForfeitNoShow(ctx context.Context, db repository.DBTX, tenantID, packID, lessonID string) error {
	packs := s.packsOn(db)
	return packs.AppendLedger(ctx, &models.PackLedgerEntry{
		TenantID: tenantID,
		PackID:   packID,
		LessonID: &lessonID,
		Delta:    0,
		Reason:   models.LedgerReasonNoShowForfeit,
	})
}

// Verify checks the conservation law used_credits == -sum(ledger.delta).
// It never repairs anything; a violation means a bug upstream.
func (s *CreditService) Verify(ctx context.Context, db repository.DBTX, packID, tenantID string) error {
	packs := s.packsOn(db)
	pack, err := packs.GetByID(ctx, packID, tenantID)
	if err != nil {
		return err
	}
	sum, err := packs.LedgerSum(ctx, packID)
	if err != nil {
		return err
	}
	if pack.UsedCredits != -sum {
		return fmt.Errorf("pack %s ledger out of balance: used=%d ledger_sum=%d", packID, pack.UsedCredits, sum)
	}
	return nil
}
