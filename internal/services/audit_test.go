package services

import (
	"context"
	"testing"

	"github.com/diewo77/go-pos/internal/fiscal"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sellN(t *testing.T, f *fixture, n int) []*models.Sale {
	t.Helper()
	p := f.product(t, "Biscuits", "2.50", "5.5", int64(n))
	sales := make([]*models.Sale, n)
	for i := range sales {
		s, err := f.engine.Submit(context.Background(), cashier, cashCart("5", CartLine{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)
		sales[i] = s
	}
	return sales
}

func TestVerify_EmptyChain(t *testing.T) {
	f := newFixture(t)
	report, err := f.auditor.Verify(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Checked)
	assert.Empty(t, report.HeadDigest)
}

func TestVerify_ValidChain(t *testing.T) {
	f := newFixture(t)
	sales := sellN(t, f, 3)

	report, err := f.auditor.Verify(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(3), report.Checked)
	assert.Equal(t, int64(3), report.Length)
	assert.Equal(t, sales[2].Digest, report.HeadDigest)

	var log models.AuditLog
	require.NoError(t, f.db.Where("entity_type = ?", "chain").First(&log).Error)
	assert.Equal(t, models.AuditActionChainVerified, log.Action)
}

func TestVerify_RequiresElevatedCapability(t *testing.T) {
	f := newFixture(t)
	_, err := f.auditor.Verify(context.Background(), cashier)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerify_DetectsTamperedTotal(t *testing.T) {
	f := newFixture(t)
	sales := sellN(t, f, 3)

	// raw SQL bypasses the model hooks, like someone editing the database
	require.NoError(t, f.db.Exec("UPDATE sales SET total_ttc = ? WHERE id = ?", "0.01", sales[1].ID).Error)

	report, err := f.auditor.Verify(context.Background(), admin)
	var ive *IntegrityViolationError
	require.ErrorAs(t, err, &ive)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.False(t, report.Valid)
	require.Len(t, ive.Violations, 1)
	assert.Equal(t, sales[1].ID, ive.Violations[0].SaleID)
	assert.Equal(t, fiscal.ReasonDigestMismatch, ive.Violations[0].Reason)

	var log models.AuditLog
	require.NoError(t, f.db.Where("action = ?", models.AuditActionIntegrityViolation).First(&log).Error)
	assert.Contains(t, log.Details, fiscal.ReasonDigestMismatch)
}

func TestVerify_DetectsRemovedSale(t *testing.T) {
	f := newFixture(t)
	sales := sellN(t, f, 3)
	require.NoError(t, f.db.Exec("DELETE FROM sales WHERE id = ?", sales[1].ID).Error)

	_, err := f.auditor.Verify(context.Background(), admin)
	var ive *IntegrityViolationError
	require.ErrorAs(t, err, &ive)
	reasons := map[string]bool{}
	for _, v := range ive.Violations {
		reasons[v.Reason] = true
	}
	assert.True(t, reasons[fiscal.ReasonBrokenLink])
	assert.True(t, reasons[fiscal.ReasonLengthMismatch])
}

func TestVerify_DetectsTruncatedTail(t *testing.T) {
	f := newFixture(t)
	sales := sellN(t, f, 2)
	require.NoError(t, f.db.Exec("DELETE FROM sales WHERE id = ?", sales[1].ID).Error)

	_, err := f.auditor.Verify(context.Background(), admin)
	var ive *IntegrityViolationError
	require.ErrorAs(t, err, &ive)
	reasons := map[string]bool{}
	for _, v := range ive.Violations {
		reasons[v.Reason] = true
	}
	assert.True(t, reasons[fiscal.ReasonHeadMismatch])
	assert.True(t, reasons[fiscal.ReasonLengthMismatch])
}
