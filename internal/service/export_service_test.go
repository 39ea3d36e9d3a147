package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
	"github.com/vidyalaya/vidyalaya-api/pkg/jobs"
)

type mockExportFeeRepo struct {
	pages  [][]models.StudentFeeDetail
	total  int
	detail *models.StudentFeeDetail
	calls  int
}

func (m *mockExportFeeRepo) List(ctx context.Context, filter models.StudentFeeFilter) ([]models.StudentFeeDetail, int, error) {
	m.calls++
	idx := filter.Page - 1
	if idx < 0 || idx >= len(m.pages) {
		return nil, m.total, nil
	}
	return m.pages[idx], m.total, nil
}

func (m *mockExportFeeRepo) FindDetailByID(ctx context.Context, id string) (*models.StudentFeeDetail, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type mockExportAttendanceRepo struct {
	records []models.AttendanceRecord
}

func (m *mockExportAttendanceRepo) ListForDate(ctx context.Context, classID, sessionID string, date time.Time) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

type mockExportLedgerRepo struct {
	txn *models.FeeTransaction
}

func (m *mockExportLedgerRepo) FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error) {
	if m.txn == nil || m.txn.ReceiptNumber != receiptNumber {
		return nil, sql.ErrNoRows
	}
	return m.txn, nil
}

type mockExportSchoolRepo struct {
	school *models.School
}

func (m *mockExportSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.school == nil {
		return nil, sql.ErrNoRows
	}
	return m.school, nil
}

func newExportServiceForTest(t *testing.T, fees *mockExportFeeRepo, attendance *mockExportAttendanceRepo, ledger *mockExportLedgerRepo, schools *mockExportSchoolRepo) *ExportService {
	t.Helper()
	return NewExportService(fees, attendance, ledger, schools, NewMetricsService(), jobs.QueueConfig{
		Workers:    1,
		RetryDelay: time.Millisecond,
	}, t.TempDir(), zap.NewNop())
}

func feeDetail() *models.StudentFeeDetail {
	className := "Grade 5"
	return &models.StudentFeeDetail{
		StudentFee: models.StudentFee{
			ID:             "fee-1",
			StudentID:      "student-1",
			FeeStructureID: "structure-1",
			SessionID:      "session-1",
			FeeAmount:      1000,
			DiscountAmount: 100,
			FineAmount:     50,
			PaidAmount:     400,
			DueDate:        time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
			Status:         models.FeeStatusPartial,
		},
		StudentName: "Asha Rao",
		AdmissionNo: "ADM-001",
		FeeName:     "Tuition",
		ClassName:   &className,
	}
}

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportServiceFeeReportCSV(t *testing.T) {
	fees := &mockExportFeeRepo{
		pages: [][]models.StudentFeeDetail{{*feeDetail()}},
		total: 1,
	}
	svc := newExportServiceForTest(t, fees, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	data, err := svc.FeeReportCSV(context.Background(), models.StudentFeeFilter{SchoolID: "school-1", SessionID: "session-1"})
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Student", "Admission No", "Fee", "Class", "Amount", "Discount", "Fine", "Paid", "Balance", "Due Date", "Status"}, records[0])
	assert.Equal(t, []string{"Asha Rao", "ADM-001", "Tuition", "Grade 5", "1000.00", "100.00", "50.00", "400.00", "550.00", "2026-05-10", "partial"}, records[1])
}

func TestExportServiceFeeReportCSVPaginates(t *testing.T) {
	first := *feeDetail()
	second := *feeDetail()
	second.ID = "fee-2"
	second.StudentName = "Ravi Kumar"
	fees := &mockExportFeeRepo{
		pages: [][]models.StudentFeeDetail{{first}, {second}},
		total: 2,
	}
	// Each mock page is below the total, so the service must keep fetching.
	svc := newExportServiceForTest(t, fees, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	data, err := svc.FeeReportCSV(context.Background(), models.StudentFeeFilter{SchoolID: "school-1"})
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, "Asha Rao", records[1][0])
	assert.Equal(t, "Ravi Kumar", records[2][0])
	assert.Equal(t, 2, fees.calls)
}

func TestExportServiceAttendanceSheetCSV(t *testing.T) {
	notes := "arrived at 9:40"
	attendance := &mockExportAttendanceRepo{records: []models.AttendanceRecord{
		{
			Attendance:  models.Attendance{Status: models.AttendancePresent},
			StudentName: "Asha Rao",
			RollNumber:  1,
		},
		{
			Attendance:  models.Attendance{Status: models.AttendanceLate, Notes: &notes},
			StudentName: "Ravi Kumar",
			RollNumber:  2,
		},
	}}
	svc := newExportServiceForTest(t, &mockExportFeeRepo{}, attendance, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	data, err := svc.AttendanceSheetCSV(context.Background(), "class-1", "session-1", time.Now())
	require.NoError(t, err)

	records := parseCSV(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Roll No", "Student", "Status", "Notes"}, records[0])
	assert.Equal(t, []string{"1", "Asha Rao", "present", ""}, records[1])
	assert.Equal(t, []string{"2", "Ravi Kumar", "late", "arrived at 9:40"}, records[2])
}

func TestExportServiceReceiptJobFor(t *testing.T) {
	method := models.MethodCash
	ledger := &mockExportLedgerRepo{txn: &models.FeeTransaction{
		ID:              "txn-1",
		StudentFeeID:    "fee-1",
		StudentID:       "student-1",
		TransactionType: models.TransactionPayment,
		Amount:          400,
		PaymentMethod:   &method,
		TransactionDate: time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC),
		ReceiptNumber:   "RCPT-20260502-abcd1234",
	}}
	fees := &mockExportFeeRepo{detail: feeDetail()}
	schools := &mockExportSchoolRepo{school: &models.School{ID: "school-1", Name: "Green Valley School"}}
	svc := newExportServiceForTest(t, fees, &mockExportAttendanceRepo{}, ledger, schools)

	job, err := svc.ReceiptJobFor(context.Background(), "school-1", "RCPT-20260502-abcd1234")
	require.NoError(t, err)
	assert.Equal(t, "Green Valley School", job.SchoolName)
	assert.Equal(t, "RCPT-20260502-abcd1234", job.ReceiptNumber)
	assert.Equal(t, "Asha Rao", job.StudentName)
	assert.Equal(t, "Grade 5", job.ClassName)
	assert.Equal(t, "Tuition", job.FeeName)
	assert.Equal(t, 400.0, job.Amount)
	assert.Equal(t, "cash", job.Method)
	assert.Equal(t, 550.0, job.Balance)
}

func TestExportServiceReceiptJobForUnknownReceipt(t *testing.T) {
	svc := newExportServiceForTest(t, &mockExportFeeRepo{}, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	_, err := svc.ReceiptJobFor(context.Background(), "school-1", "RCPT-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRenderReceipt(t *testing.T) {
	svc := newExportServiceForTest(t, &mockExportFeeRepo{}, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	data, err := svc.RenderReceipt(ReceiptJob{
		SchoolName:    "Green Valley School",
		ReceiptNumber: "RCPT-20260502-abcd1234",
		StudentName:   "Asha Rao",
		FeeName:       "Tuition",
		Amount:        400,
		Method:        "cash",
		PaymentDate:   time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestExportServiceQueueReceiptWritesFile(t *testing.T) {
	dir := t.TempDir()
	svc := NewExportService(&mockExportFeeRepo{}, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{}, NewMetricsService(), jobs.QueueConfig{
		Workers: 1,
	}, dir, zap.NewNop())

	svc.Start(context.Background())
	defer svc.Stop()

	err := svc.QueueReceipt(ReceiptJob{
		SchoolName:    "Green Valley School",
		ReceiptNumber: "RCPT-20260502-abcd1234",
		StudentName:   "Asha Rao",
		FeeName:       "Tuition",
		Amount:        400,
		Method:        "cash",
		PaymentDate:   time.Now(),
	})
	require.NoError(t, err)

	path := filepath.Join(dir, "RCPT-20260502-abcd1234.pdf")
	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.Size() > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExportServiceQueueReceiptBeforeStart(t *testing.T) {
	svc := newExportServiceForTest(t, &mockExportFeeRepo{}, &mockExportAttendanceRepo{}, &mockExportLedgerRepo{}, &mockExportSchoolRepo{})

	err := svc.QueueReceipt(ReceiptJob{ReceiptNumber: "RCPT-x"})
	require.Error(t, err)
}
