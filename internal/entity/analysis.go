package entity

// ClinicalExtraction holds what the model read off the discharge summary.
type ClinicalExtraction struct {
	Diagnoses     []string `json:"diagnoses"`
	Procedures    []string `json:"procedures"`
	Complications []string `json:"complications"`
	SurgeryType   string   `json:"surgery_type"`
	Anesthesia    string   `json:"anesthesia"`
	AdmissionType string   `json:"admission_type"`
	Remarks       string   `json:"remarks"`
}

// NormalizedMedicalConcepts groups the clinical findings into coder-friendly buckets.
type NormalizedMedicalConcepts struct {
	PrimaryConditions    []string `json:"primary_conditions"`
	DefinitiveProcedures []string `json:"definitive_procedures"`
	SupportingProcedures []string `json:"supporting_procedures"`
}

// PackageItem is a selected package. Code and name are copied verbatim from a candidate.
type PackageItem struct {
	PackageCode string `json:"package_code"`
	PackageName string `json:"package_name"`
	Reason      string `json:"reason"`
}

// RejectedPackage is a candidate the model considered and ruled out.
type RejectedPackage struct {
	PackageCode string `json:"package_code"`
	Reason      string `json:"reason"`
}

// PackageRecommendation is the load-bearing part of an analysis.
type PackageRecommendation struct {
	PrimaryPackage          PackageItem       `json:"primary_package"`
	AddOnPackages           []PackageItem     `json:"add_on_packages"`
	RejectedPackages        []RejectedPackage `json:"rejected_packages"`
	TotalApplicablePackages int               `json:"total_applicable_packages"`
}

// InsuranceJustification explains the recommendation to a claims reviewer.
type InsuranceJustification struct {
	Summary           string   `json:"summary"`
	ConfidenceScore   float64  `json:"confidence_score"`
	RiskFlags         []string `json:"risk_flags"`
	RequiredDocuments []string `json:"required_documents"`
}

// AnalysisResult is the externally visible unit of work.
type AnalysisResult struct {
	ClinicalExtraction        ClinicalExtraction        `json:"clinical_extraction"`
	NormalizedMedicalConcepts NormalizedMedicalConcepts `json:"normalized_medical_concepts"`
	PackageRecommendation     PackageRecommendation     `json:"package_recommendation"`
	InsuranceJustification    InsuranceJustification    `json:"insurance_justification"`
}
