package sales

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

// PaymentBackend is the slice of the stock client used for settlements.
type PaymentBackend interface {
	UpdatePayment(ctx context.Context, saleID int64, update models.PaymentUpdate) error
	PaidSales(ctx context.Context, opts stockapi.FetchOptions) ([]models.SaleRecord, error)
	UnpaidSales(ctx context.Context, opts stockapi.FetchOptions) ([]models.SaleRecord, error)
	PaymentSummary(ctx context.Context, opts stockapi.FetchOptions) (*models.PaymentSummary, error)
}

// PaymentBoard is the paid/unpaid view of sales.
type PaymentBoard struct {
	Paid    []models.SaleRecord    `json:"paid"`
	Unpaid  []models.SaleRecord    `json:"unpaid"`
	Summary *models.PaymentSummary `json:"summary"`
}

// Payments settles outstanding sales.
type Payments struct {
	backend PaymentBackend
	logger  *zap.Logger
}

// NewPayments builds a Payments service.
func NewPayments(backend PaymentBackend, logger *zap.Logger) *Payments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Payments{backend: backend, logger: logger}
}

// MarkPaid settles saleID with method and reloads the board from the backend.
func (p *Payments) MarkPaid(ctx context.Context, saleID int64, method string) (*PaymentBoard, error) {
	if saleID <= 0 {
		return nil, models.NewValidationError("sale_id", "must be positive")
	}
	m, ok := models.ParsePaymentMethod(method)
	if !ok {
		return nil, models.NewValidationError("payment_method", fmt.Sprintf("unknown value %q", method))
	}

	update := models.PaymentUpdate{PaymentStatus: models.PaymentPaid, PaymentMethod: &m}
	if err := p.backend.UpdatePayment(ctx, saleID, update); err != nil {
		return nil, err
	}
	p.logger.Info("sale marked paid", zap.Int64("sale_id", saleID), zap.String("method", string(m)))

	return p.Board(ctx)
}

// Board loads paid sales, unpaid sales and the summary concurrently.
func (p *Payments) Board(ctx context.Context) (*PaymentBoard, error) {
	opts := stockapi.FetchOptions{NoCache: true}
	board := new(PaymentBoard)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		board.Paid, err = p.backend.PaidSales(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		board.Unpaid, err = p.backend.UnpaidSales(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		board.Summary, err = p.backend.PaymentSummary(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reload payments: %w", err)
	}
	return board, nil
}
