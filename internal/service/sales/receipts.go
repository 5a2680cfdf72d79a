package sales

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// ErrReceiptUnavailable wraps every receipt download failure.
var ErrReceiptUnavailable = errors.New("receipt unavailable")

const genericReceiptFailure = "error downloading receipt"

// ReceiptBackend downloads receipt PDFs.
type ReceiptBackend interface {
	Receipt(ctx context.Context, saleID int64) ([]byte, error)
}

// Receipts fetches receipts of already recorded sales. Failures here never
// change sale state.
type Receipts struct {
	backend ReceiptBackend
	logger  *zap.Logger
	now     func() time.Time
}

// NewReceipts builds a Receipts service.
func NewReceipts(backend ReceiptBackend, logger *zap.Logger) *Receipts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Receipts{backend: backend, logger: logger, now: time.Now}
}

// Fetch returns the PDF bytes of saleID's receipt.
func (r *Receipts) Fetch(ctx context.Context, saleID int64) ([]byte, error) {
	if saleID <= 0 {
		return nil, fmt.Errorf("%w: no sale id available", ErrReceiptUnavailable)
	}
	pdf, err := r.backend.Receipt(ctx, saleID)
	if err != nil {
		r.logger.Warn("receipt download failed", zap.Int64("sale_id", saleID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrReceiptUnavailable, ReceiptFailureMessage(err))
	}
	return pdf, nil
}

// Save downloads the receipt into dir and returns the written path.
func (r *Receipts) Save(ctx context.Context, saleID int64, dir string) (string, error) {
	pdf, err := r.Fetch(ctx, saleID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}
	path := filepath.Join(dir, ReceiptFilename(saleID, r.now()))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write receipt: %w", err)
	}
	return path, nil
}

// ReceiptFilename names a downloaded receipt.
func ReceiptFilename(saleID int64, day time.Time) string {
	return fmt.Sprintf("receipt_%d_%s.pdf", saleID, day.Format("2006-01-02"))
}

// ReceiptFailureMessage is the user-facing reason for a failed download.
func ReceiptFailureMessage(err error) string {
	if msg, ok := models.BackendMessage(err); ok {
		return msg
	}
	return genericReceiptFailure
}
