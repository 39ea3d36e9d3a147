package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/export"
	"github.com/vidyalaya/vidyalaya-api/pkg/jobs"
)

const receiptJobType = "receipt_pdf"

type exportFeeReader interface {
	List(ctx context.Context, filter models.StudentFeeFilter) ([]models.StudentFeeDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentFeeDetail, error)
}

type exportAttendanceReader interface {
	ListForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error)
}

type exportLedgerReader interface {
	FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error)
}

type exportSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// ReceiptJob is the payload queued for asynchronous receipt rendering.
type ReceiptJob struct {
	SchoolName    string
	ReceiptNumber string
	StudentName   string
	ClassName     string
	FeeName       string
	Amount        float64
	Method        string
	PaymentDate   time.Time
	Balance       float64
}

// ExportService renders CSV report downloads and queues PDF receipts.
type ExportService struct {
	fees       exportFeeReader
	attendance exportAttendanceReader
	ledger     exportLedgerReader
	schools    exportSchoolReader
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	queue      *jobs.Queue
	metrics    *MetricsService
	outputDir  string
	logger     *zap.Logger
}

// NewExportService constructs the export service. Queue workers are started
// by the caller. outputDir receives the rendered receipt PDFs.
func NewExportService(fees exportFeeReader, attendance exportAttendanceReader, ledger exportLedgerReader, schools exportSchoolReader, metrics *MetricsService, cfg jobs.QueueConfig, outputDir string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	s := &ExportService{
		fees:       fees,
		attendance: attendance,
		ledger:     ledger,
		schools:    schools,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		outputDir:  outputDir,
		logger:     logger,
	}
	s.queue = jobs.NewQueue("exports", s.handleJob, cfg)
	return s
}

// Start launches the export worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// FeeReportCSV renders the fee listing matching the filter as CSV bytes.
func (s *ExportService) FeeReportCSV(ctx context.Context, filter models.StudentFeeFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 100
	headers := []string{"Student", "Admission No", "Fee", "Class", "Amount", "Discount", "Fine", "Paid", "Balance", "Due Date", "Status"}
	var rows []map[string]string

	for {
		fees, total, err := s.fees.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fees for export")
		}
		for i := range fees {
			fee := &fees[i]
			className := ""
			if fee.ClassName != nil {
				className = *fee.ClassName
			}
			rows = append(rows, map[string]string{
				"Student":      fee.StudentName,
				"Admission No": fee.AdmissionNo,
				"Fee":          fee.FeeName,
				"Class":        className,
				"Amount":       fmt.Sprintf("%.2f", fee.FeeAmount),
				"Discount":     fmt.Sprintf("%.2f", fee.DiscountAmount),
				"Fine":         fmt.Sprintf("%.2f", fee.FineAmount),
				"Paid":         fmt.Sprintf("%.2f", fee.PaidAmount),
				"Balance":      fmt.Sprintf("%.2f", fee.Balance()),
				"Due Date":     fee.DueDate.Format("2006-01-02"),
				"Status":       string(fee.Status),
			})
		}
		if len(rows) >= total || len(fees) == 0 {
			break
		}
		filter.Page++
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// AttendanceSheetCSV renders a class day sheet as CSV bytes.
func (s *ExportService) AttendanceSheetCSV(ctx context.Context, classID, sessionID string, date time.Time) ([]byte, error) {
	records, err := s.attendance.ListForDate(ctx, classID, sessionID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance for export")
	}

	headers := []string{"Roll No", "Student", "Status", "Notes"}
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}
		rows = append(rows, map[string]string{
			"Roll No": fmt.Sprintf("%d", record.RollNumber),
			"Student": record.StudentName,
			"Status":  string(record.Status),
			"Notes":   notes,
		})
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// ReceiptJobFor assembles the render payload for a receipt. The transaction
// must belong to a student of the given school.
func (s *ExportService) ReceiptJobFor(ctx context.Context, schoolID, receiptNumber string) (*ReceiptJob, error) {
	txn, err := s.ledger.FindByReceiptNumber(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}

	fee, err := s.fees.FindDetailByID(ctx, txn.StudentFeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee for receipt")
	}

	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school for receipt")
	}

	method := ""
	if txn.PaymentMethod != nil {
		method = string(*txn.PaymentMethod)
	}
	className := ""
	if fee.ClassName != nil {
		className = *fee.ClassName
	}
	return &ReceiptJob{
		SchoolName:    school.Name,
		ReceiptNumber: txn.ReceiptNumber,
		StudentName:   fee.StudentName,
		ClassName:     className,
		FeeName:       fee.FeeName,
		Amount:        txn.Amount,
		Method:        method,
		PaymentDate:   txn.TransactionDate,
		Balance:       fee.Balance(),
	}, nil
}

// QueueReceipt enqueues asynchronous rendering of a payment receipt PDF.
func (s *ExportService) QueueReceipt(job ReceiptJob) error {
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    receiptJobType,
		Payload: job,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue receipt")
	}
	return nil
}

// RenderReceipt produces the receipt PDF synchronously, for direct download.
func (s *ExportService) RenderReceipt(job ReceiptJob) ([]byte, error) {
	data, err := s.pdf.RenderReceipt(export.Receipt{
		SchoolName:    job.SchoolName,
		ReceiptNumber: job.ReceiptNumber,
		StudentName:   job.StudentName,
		ClassName:     job.ClassName,
		FeeName:       job.FeeName,
		Amount:        job.Amount,
		Method:        job.Method,
		PaymentDate:   job.PaymentDate.Format("2006-01-02 15:04"),
		Balance:       job.Balance,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case receiptJobType:
		payload, ok := job.Payload.(ReceiptJob)
		if !ok {
			s.metrics.RecordExportJob("failed")
			return fmt.Errorf("unexpected payload type for %s", job.Type)
		}
		data, err := s.RenderReceipt(payload)
		if err != nil {
			s.metrics.RecordExportJob("failed")
			return err
		}
		path := filepath.Join(s.outputDir, payload.ReceiptNumber+".pdf")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			s.metrics.RecordExportJob("failed")
			return fmt.Errorf("write receipt file: %w", err)
		}
		s.metrics.RecordExportJob("success")
		s.logger.Info("receipt rendered", zap.String("receipt", payload.ReceiptNumber), zap.String("path", path))
		return nil
	default:
		return fmt.Errorf("unknown export job type %s", job.Type)
	}
}
