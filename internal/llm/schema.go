package llm

// BuildAnalysisJSONSchema returns the JSON-Schema (draft 2020-12 subset) of an analysis result
// as a generic map. It is passed to the model as a structured output constraint and also
// used locally to validate.
func BuildAnalysisJSONSchema() map[string]any {
	clinical := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"diagnoses":      stringArray(),
			"procedures":     stringArray(),
			"complications":  stringArray(),
			"surgery_type":   map[string]any{"type": "string"},
			"anesthesia":     map[string]any{"type": "string"},
			"admission_type": map[string]any{"type": "string"},
			"remarks":        map[string]any{"type": "string"},
		},
		"required": []string{"diagnoses", "procedures", "complications"},
	}

	concepts := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"primary_conditions":    stringArray(),
			"definitive_procedures": stringArray(),
			"supporting_procedures": stringArray(),
		},
	}

	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"package_code": map[string]any{"type": "string", "minLength": 1},
			"package_name": map[string]any{"type": "string"},
			"reason":       map[string]any{"type": "string"},
		},
		"required": []string{"package_code", "package_name", "reason"},
	}

	rejected := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"package_code": map[string]any{"type": "string", "minLength": 1},
			"reason":       map[string]any{"type": "string"},
		},
		"required": []string{"package_code", "reason"},
	}

	recommendation := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"primary_package":           item,
			"add_on_packages":           map[string]any{"type": "array", "items": item},
			"rejected_packages":         map[string]any{"type": "array", "items": rejected},
			"total_applicable_packages": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"primary_package", "add_on_packages", "rejected_packages"},
	}

	justification := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":            map[string]any{"type": "string"},
			"confidence_score":   map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"risk_flags":         stringArray(),
			"required_documents": stringArray(),
		},
		"required": []string{"summary", "confidence_score"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"clinical_extraction":         clinical,
			"normalized_medical_concepts": concepts,
			"package_recommendation":      recommendation,
			"insurance_justification":     justification,
		},
		"required": []string{"clinical_extraction", "package_recommendation", "insurance_justification"},
	}
}

// BuildKeywordJSONSchema constrains the keyword stage to an array of strings.
func BuildKeywordJSONSchema() map[string]any {
	return stringArray()
}

func stringArray() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}
