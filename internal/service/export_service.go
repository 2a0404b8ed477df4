package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/pkg/export"
	"github.com/cnportal/cn-portal-api/pkg/storage"
)

type reportTimesheetSource interface {
	List(ctx context.Context, filter models.TimesheetFilter) ([]models.Timesheet, int, error)
	ListPending(ctx context.Context, limit int) ([]models.PendingTimesheetRow, error)
}

type reportEmployeeSource interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from timesheet data and persists
// rendered files.
type ExportService struct {
	timesheets reportTimesheetSource
	employees  reportEmployeeSource
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// exportPageSize caps how many timesheets a single export reads.
const exportPageSize = 1000

// NewExportService constructs an ExportService.
func NewExportService(timesheets reportTimesheetSource, employees reportEmployeeSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timesheets: timesheets,
		employees:  employees,
		storage:    storage,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds a dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	parts := []string{strings.ToLower(string(job.Type)), job.Params.PeriodLabel()}
	if job.Params.EmployeeID != nil && *job.Params.EmployeeID != "" {
		parts = append(parts, sanitizeFilename(*job.Params.EmployeeID))
	}
	parts = append(parts, timestamp)
	return fmt.Sprintf("%s.%s", strings.Join(parts, "_"), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeTimesheets:
		return s.buildTimesheetDataset(ctx, job.Params)
	case models.ReportTypeHours:
		return s.buildHoursDataset(ctx, job.Params)
	case models.ReportTypePending:
		return s.buildPendingDataset(ctx)
	case models.ReportTypeSummary:
		return s.buildSummaryDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildTimesheetDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	sheets, err := s.listTimesheets(ctx, params, nil)
	if err != nil {
		return export.Dataset{}, "", err
	}
	names := s.employeeNames(ctx)

	dataRows := make([]map[string]string, 0, len(sheets))
	for _, ts := range sheets {
		dataRows = append(dataRows, map[string]string{
			"Employee":    employeeLabel(names, ts.EmployeeID),
			"Period":      periodCell(&ts),
			"Start Date":  ts.StartDate.Format("2006-01-02"),
			"End Date":    ts.EndDate.Format("2006-01-02"),
			"Total Hours": fmt.Sprintf("%.2f", ts.TotalHours),
			"Status":      string(ts.Status),
			"Submitted":   formatReportTime(ts.SubmittedDate),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Employee", "Period", "Start Date", "End Date", "Total Hours", "Status", "Submitted"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Timesheet Register %s", params.PeriodLabel())
	return dataset, title, nil
}

func (s *ExportService) buildHoursDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	sheets, err := s.listTimesheets(ctx, params, []models.TimesheetStatus{models.StatusApprovedL2})
	if err != nil {
		return export.Dataset{}, "", err
	}
	names := s.employeeNames(ctx)

	type bucket struct {
		hours float64
		count int
	}
	totals := make(map[string]*bucket)
	order := make([]string, 0)
	for _, ts := range sheets {
		b, ok := totals[ts.EmployeeID]
		if !ok {
			b = &bucket{}
			totals[ts.EmployeeID] = b
			order = append(order, ts.EmployeeID)
		}
		b.hours += ts.TotalHours
		b.count++
	}

	dataRows := make([]map[string]string, 0, len(order))
	for _, employeeID := range order {
		b := totals[employeeID]
		dataRows = append(dataRows, map[string]string{
			"Employee ID":    employeeID,
			"Employee":       employeeLabel(names, employeeID),
			"Timesheets":     fmt.Sprintf("%d", b.count),
			"Approved Hours": fmt.Sprintf("%.2f", b.hours),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Employee ID", "Employee", "Timesheets", "Approved Hours"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Approved Hours %s", params.PeriodLabel())
	return dataset, title, nil
}

func (s *ExportService) buildPendingDataset(ctx context.Context) (export.Dataset, string, error) {
	rows, err := s.timesheets.ListPending(ctx, exportPageSize)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Employee":    row.EmployeeName,
			"Email":       row.Email,
			"Start Date":  row.StartDate.Format("2006-01-02"),
			"End Date":    row.EndDate.Format("2006-01-02"),
			"Total Hours": fmt.Sprintf("%.2f", row.TotalHours),
			"Status":      string(row.Status),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Employee", "Email", "Start Date", "End Date", "Total Hours", "Status"},
		Rows:    dataRows,
	}
	return dataset, "Pending Approvals", nil
}

func (s *ExportService) buildSummaryDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	sheets, err := s.listTimesheets(ctx, params, nil)
	if err != nil {
		return export.Dataset{}, "", err
	}

	counts := make(map[models.TimesheetStatus]int)
	var approvedHours float64
	for _, ts := range sheets {
		counts[ts.Status]++
		if ts.Status == models.StatusApprovedL2 {
			approvedHours += ts.TotalHours
		}
	}

	period := params.PeriodLabel()
	rows := []map[string]string{
		{"Metric": "Timesheets", "Period": period, "Value": fmt.Sprintf("%d", len(sheets))},
		{"Metric": "Submitted", "Period": period, "Value": fmt.Sprintf("%d", counts[models.StatusSubmitted])},
		{"Metric": "Approved L1", "Period": period, "Value": fmt.Sprintf("%d", counts[models.StatusApprovedL1])},
		{"Metric": "Approved L2", "Period": period, "Value": fmt.Sprintf("%d", counts[models.StatusApprovedL2])},
		{"Metric": "Rejected", "Period": period, "Value": fmt.Sprintf("%d", counts[models.StatusRejected])},
		{"Metric": "Approved Hours", "Period": period, "Value": fmt.Sprintf("%.2f", approvedHours)},
	}

	dataset := export.Dataset{
		Headers: []string{"Metric", "Period", "Value"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Workflow Summary %s", period)
	return dataset, title, nil
}

func (s *ExportService) listTimesheets(ctx context.Context, params models.ReportJobParams, statuses []models.TimesheetStatus) ([]models.Timesheet, error) {
	filter := models.TimesheetFilter{
		Year:     &params.Year,
		Statuses: statuses,
		Page:     1,
		PageSize: exportPageSize,
	}
	if params.Month > 0 {
		filter.Month = &params.Month
	}
	if params.EmployeeID != nil {
		filter.EmployeeID = *params.EmployeeID
	}
	sheets, _, err := s.timesheets.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

// employeeNames is best effort: exports fall back to raw IDs when the roster
// lookup fails.
func (s *ExportService) employeeNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	if s.employees == nil {
		return names
	}
	roster, _, err := s.employees.List(ctx, models.EmployeeFilter{Page: 1, PageSize: exportPageSize})
	if err != nil {
		s.logger.Warn("employee roster unavailable for export", zap.Error(err))
		return names
	}
	for i := range roster {
		names[roster[i].ID] = roster[i].FullName()
	}
	return names
}

func employeeLabel(names map[string]string, employeeID string) string {
	if name, ok := names[employeeID]; ok && name != "" {
		return name
	}
	return employeeID
}

func periodCell(ts *models.Timesheet) string {
	if ts.WeekNumber != nil {
		return fmt.Sprintf("%04d-%02d W%d", ts.Year, ts.Month, *ts.WeekNumber)
	}
	return fmt.Sprintf("%04d-%02d", ts.Year, ts.Month)
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
