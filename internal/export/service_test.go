package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/entity"
	"github.com/joseph-ayodele/mediclaim/internal/pipeline"
)

func TestAnalysisXLSX(t *testing.T) {
	a := &pipeline.Analysis{
		RequestID: "req-9",
		Keywords:  []string{"Cholecystectomy"},
		Candidates: []corpus.Record{
			{Code: "P001", Name: "Cholecystectomy Open", Source: "package_list_1.csv"},
			{Code: "P003", Name: "ERCP Stenting", Source: "package_list_2.csv"},
		},
		Result: entity.AnalysisResult{
			ClinicalExtraction: entity.ClinicalExtraction{Diagnoses: []string{"Cholelithiasis", "Cholecystitis"}},
			PackageRecommendation: entity.PackageRecommendation{
				PrimaryPackage:          entity.PackageItem{PackageCode: "P001", PackageName: "Cholecystectomy Open", Reason: "main"},
				RejectedPackages:        []entity.RejectedPackage{{PackageCode: "P003", Reason: "not done"}},
				TotalApplicablePackages: 1,
			},
			InsuranceJustification: entity.InsuranceJustification{Summary: "ok", ConfidenceScore: 0.9},
		},
	}

	b, err := NewService(nil).AnalysisXLSX(a)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetPackages, SheetClinical, SheetCandidates}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "B3")
	require.NoError(t, err)
	assert.Equal(t, "P001", v)

	rows, err := f.GetRows(SheetPackages)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"primary", "P001", "Cholecystectomy Open", "main"}, rows[1])
	assert.Equal(t, "rejected", rows[2][0])

	v, err = f.GetCellValue(SheetClinical, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Cholelithiasis; Cholecystitis", v)

	rows, err = f.GetRows(SheetCandidates)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAnalysisXLSX_Nil(t *testing.T) {
	_, err := NewService(nil).AnalysisXLSX(nil)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
