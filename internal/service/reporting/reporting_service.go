package reporting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
	repo "github.com/mamadbah2/stockdesk/internal/repository/sheets"
	"github.com/mamadbah2/stockdesk/pkg/clients/stockapi"
)

const (
	dateLayout     = "2006-01-02"
	salesDataRange = "Sales!A:J"
)

// Backend is the slice of the stock client used for reports.
type Backend interface {
	DailySales(ctx context.Context, opts stockapi.FetchOptions) (*models.DailySales, error)
	LowStockAlerts(ctx context.Context, threshold int, opts stockapi.FetchOptions) (*models.LowStockAlerts, error)
	ListStock(ctx context.Context, opts stockapi.FetchOptions) ([]models.StockItem, error)
	WeeklyReport(ctx context.Context, kind models.ReportKind) ([]byte, error)
}

// Archive persists daily closes.
type Archive interface {
	SaveDailySnapshot(ctx context.Context, snapshot models.DailySnapshot) error
}

// Notifier delivers the daily digest.
type Notifier interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// Options holds the optional collaborators of the service. Nil collaborators
// are skipped during the daily close.
type Options struct {
	Sheets    repo.Repository
	Archive   Archive
	Notifier  Notifier
	Recipient string
	OutputDir string
	Threshold int
	Location  *time.Location
}

// Service produces weekly report files and the daily close.
type Service struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(backend Backend, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "reports"
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 10
	}
	return &Service{backend: backend, opts: opts, logger: logger, now: time.Now}
}

// SaveWeeklyReport downloads a weekly PDF into the output directory.
func (s *Service) SaveWeeklyReport(ctx context.Context, kind models.ReportKind) (string, error) {
	pdf, err := s.backend.WeeklyReport(ctx, kind)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	name := fmt.Sprintf("weekly_%s_report_%s.pdf", kind, s.today().Format(dateLayout))
	path := filepath.Join(s.opts.OutputDir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write weekly report: %w", err)
	}
	s.logger.Info("weekly report saved", zap.String("kind", string(kind)), zap.String("path", path))
	return path, nil
}

// BuildSnapshot gathers today's figures from the backend.
func (s *Service) BuildSnapshot(ctx context.Context) (*models.DailySnapshot, *models.DailySales, error) {
	opts := stockapi.FetchOptions{NoCache: true}
	var (
		daily  *models.DailySales
		alerts *models.LowStockAlerts
		stock  []models.StockItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = s.backend.DailySales(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = s.backend.LowStockAlerts(gctx, s.opts.Threshold, opts)
		return err
	})
	g.Go(func() error {
		var err error
		stock, err = s.backend.ListStock(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("collect daily figures: %w", err)
	}

	snap := &models.DailySnapshot{
		Date:           s.today(),
		TotalSales:     daily.Summary.TotalSales,
		Revenue:        daily.Summary.TotalRevenue,
		PaidSales:      daily.Summary.PaidSales,
		UnpaidSales:    daily.Summary.UnpaidSales,
		UnpaidBalance:  decimal.Zero,
		LowStockAlerts: alerts.TotalAlerts,
		CreatedAt:      s.now().UTC(),
	}
	for _, sale := range daily.Sales {
		if sale.PaymentStatus == models.PaymentUnpaid {
			snap.UnpaidBalance = snap.UnpaidBalance.Add(sale.SaleAmount)
		}
	}
	for _, item := range stock {
		snap.StockUnits += item.Quantity
	}
	return snap, daily, nil
}

// FormatDigest renders the snapshot as a short text message.
func FormatDigest(snap models.DailySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily close %s\n", snap.Date.Format(dateLayout))
	fmt.Fprintf(&b, "Sales: %d (%d paid, %d unpaid)\n", snap.TotalSales, snap.PaidSales, snap.UnpaidSales)
	fmt.Fprintf(&b, "Revenue: ₹%s\n", snap.Revenue.StringFixed(2))
	fmt.Fprintf(&b, "Unpaid today: ₹%s\n", snap.UnpaidBalance.StringFixed(2))
	fmt.Fprintf(&b, "Stock on hand: %d units\n", snap.StockUnits)
	if snap.LowStockAlerts == 0 {
		b.WriteString("No low-stock alerts.")
	} else {
		fmt.Fprintf(&b, "Low-stock alerts: %d", snap.LowStockAlerts)
	}
	return b.String()
}

// ExportSales appends sales not yet present in the sheet and returns how
// many rows were written.
func (s *Service) ExportSales(ctx context.Context, sales []models.SaleRecord) (int, error) {
	if s.opts.Sheets == nil {
		return 0, nil
	}

	existing, err := s.opts.Sheets.ReadRange(ctx, salesDataRange)
	if err != nil {
		return 0, fmt.Errorf("load sales range: %w", err)
	}
	seen := make(map[int64]struct{}, len(existing))
	for _, row := range existing {
		if len(row) < 2 {
			continue
		}
		id, err := parseInt(row[1])
		if err != nil {
			s.logger.Debug("skip sheet row with invalid sale id", zap.Any("value", row[1]))
			continue
		}
		seen[id] = struct{}{}
	}

	rows := make([][]any, 0, len(sales))
	for _, sale := range sales {
		if _, ok := seen[sale.ID]; ok {
			continue
		}
		rows = append(rows, saleRow(sale))
	}
	if err := s.opts.Sheets.AppendRows(ctx, salesDataRange, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func saleRow(sale models.SaleRecord) []any {
	method := ""
	if sale.PaymentMethod != nil {
		method = string(*sale.PaymentMethod)
	}
	return []any{
		sale.SaleDate.Format(models.BackendTimeLayout),
		sale.ID,
		sale.CustomerName,
		sale.ProductName,
		sale.CompanyName,
		sale.QuantitySold,
		sale.UnitPrice.StringFixed(2),
		sale.SaleAmount.StringFixed(2),
		string(sale.PaymentStatus),
		method,
	}
}

// CloseDay builds today's snapshot, then archives, exports and sends it.
// The snapshot is returned even when one of the optional steps fails.
func (s *Service) CloseDay(ctx context.Context) (*models.DailySnapshot, error) {
	snap, daily, err := s.BuildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	var errs []error
	if s.opts.Archive != nil {
		if err := s.opts.Archive.SaveDailySnapshot(ctx, *snap); err != nil {
			errs = append(errs, fmt.Errorf("archive snapshot: %w", err))
		}
	}
	if n, err := s.ExportSales(ctx, daily.Sales); err != nil {
		errs = append(errs, fmt.Errorf("export sales: %w", err))
	} else if n > 0 {
		s.logger.Info("sales exported to sheet", zap.Int("rows", n))
	}
	if s.opts.Notifier != nil && s.opts.Recipient != "" {
		if _, err := s.opts.Notifier.SendText(ctx, s.opts.Recipient, FormatDigest(*snap)); err != nil {
			errs = append(errs, fmt.Errorf("send digest: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("daily close finished with errors", zap.Error(err))
		return snap, err
	}
	s.logger.Info("daily close finished",
		zap.String("date", snap.Date.Format(dateLayout)),
		zap.Int("sales", snap.TotalSales),
		zap.String("revenue", snap.Revenue.StringFixed(2)),
	)
	return snap, nil
}

func (s *Service) today() time.Time {
	now := s.now().In(s.opts.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.opts.Location)
}

func parseInt(value any) (int64, error) {
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "" {
		return 0, errors.New("empty numeric value")
	}
	return strconv.ParseInt(str, 10, 64)
}
