package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/entity"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

// Sheet names in the analysis workbook.
const (
	SheetSummary    = "Summary"
	SheetPackages   = "Packages"
	SheetClinical   = "Clinical"
	SheetCandidates = "Candidates"
)

// Service renders analyses as XLSX workbooks for claim reviewers.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{logger: common.OrNop(logger)}
}

// AnalysisXLSX returns the analysis as an XLSX workbook (as bytes).
func (s *Service) AnalysisXLSX(a *pipeline.Analysis) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil analysis", common.ErrInvalidInput)
	}
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the summary.
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetPackages, SheetClinical, SheetCandidates} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	res := a.Result
	rec := res.PackageRecommendation
	just := res.InsuranceJustification

	summary := [][]any{
		{"Field", "Value"},
		{"Request ID", a.RequestID},
		{"Primary Package", rec.PrimaryPackage.PackageCode},
		{"Primary Package Name", rec.PrimaryPackage.PackageName},
		{"Applicable Packages", rec.TotalApplicablePackages},
		{"Confidence", just.ConfidenceScore},
		{"Summary", just.Summary},
		{"Risk Flags", join(just.RiskFlags)},
		{"Required Documents", join(just.RequiredDocuments)},
		{"Keywords", join(a.Keywords)},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return nil, err
	}

	if err := writeRows(f, SheetPackages, packageRows(rec)); err != nil {
		return nil, err
	}

	ce := res.ClinicalExtraction
	nc := res.NormalizedMedicalConcepts
	clinical := [][]any{
		{"Field", "Value"},
		{"Diagnoses", join(ce.Diagnoses)},
		{"Procedures", join(ce.Procedures)},
		{"Complications", join(ce.Complications)},
		{"Surgery Type", ce.SurgeryType},
		{"Anesthesia", ce.Anesthesia},
		{"Admission Type", ce.AdmissionType},
		{"Remarks", ce.Remarks},
		{"Primary Conditions", join(nc.PrimaryConditions)},
		{"Definitive Procedures", join(nc.DefinitiveProcedures)},
		{"Supporting Procedures", join(nc.SupportingProcedures)},
	}
	if err := writeRows(f, SheetClinical, clinical); err != nil {
		return nil, err
	}

	candidates := [][]any{{"Package Code", "Package Name", "Procedure", "Speciality", "Source"}}
	for _, c := range a.Candidates {
		candidates = append(candidates, []any{c.Code, c.Name, c.Procedure, c.Speciality, c.Source})
	}
	if err := writeRows(f, SheetCandidates, candidates); err != nil {
		return nil, err
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetSummary, "A", "A", 22)
	_ = f.SetColWidth(SheetSummary, "B", "B", 80)
	_ = f.SetColWidth(SheetPackages, "A", "B", 14)
	_ = f.SetColWidth(SheetPackages, "C", "C", 40)
	_ = f.SetColWidth(SheetPackages, "D", "D", 80)
	_ = f.SetColWidth(SheetClinical, "A", "A", 22)
	_ = f.SetColWidth(SheetClinical, "B", "B", 80)
	_ = f.SetColWidth(SheetCandidates, "A", "A", 14)
	_ = f.SetColWidth(SheetCandidates, "B", "E", 36)

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.String("req_id", a.RequestID),
		zap.Int("candidates", len(a.Candidates)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func packageRows(rec entity.PackageRecommendation) [][]any {
	rows := [][]any{{"Role", "Package Code", "Package Name", "Reason"}}
	p := rec.PrimaryPackage
	rows = append(rows, []any{"primary", p.PackageCode, p.PackageName, p.Reason})
	for _, a := range rec.AddOnPackages {
		rows = append(rows, []any{"add-on", a.PackageCode, a.PackageName, a.Reason})
	}
	for _, r := range rec.RejectedPackages {
		rows = append(rows, []any{"rejected", r.PackageCode, "", r.Reason})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func join(items []string) string {
	return strings.Join(items, "; ")
}
