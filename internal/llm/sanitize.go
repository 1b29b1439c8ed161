package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"
)

var errNotObject = errors.New("top-level value is not a JSON object")

var (
	topLevelKeys = map[string]struct{}{
		"clinical_extraction":         {},
		"normalized_medical_concepts": {},
		"package_recommendation":      {},
		"insurance_justification":     {},
	}
	clinicalLists   = []string{"diagnoses", "procedures", "complications"}
	clinicalScalars = []string{"surgery_type", "anesthesia", "admission_type", "remarks"}
	conceptLists    = []string{"primary_conditions", "definitive_procedures", "supporting_procedures"}
	evidenceLists   = []string{"risk_flags", "required_documents"}
)

// SanitizeAnalysisJSON repairs the forgiving parts of a model answer so the
// document can still validate:
//   - drops unknown top-level keys
//   - defaults missing or null optional lists to [] and clinical scalars to ""
//   - trims string values and drops non-string list entries
//
// package_recommendation is never touched. It returns the repaired JSON and a
// note per change.
func SanitizeAnalysisJSON(raw []byte, logger *zap.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil, errNotObject
	}

	changes := make([]string, 0, 8)

	for k := range maps.Clone(m) {
		if _, ok := topLevelKeys[k]; !ok {
			delete(m, k)
			changes = append(changes, k+"(unknown)")
		}
	}

	if ce, ok := m["clinical_extraction"].(map[string]any); ok {
		for _, k := range clinicalLists {
			changes = append(changes, fixList(ce, "clinical_extraction."+k, k)...)
		}
		for _, k := range clinicalScalars {
			changes = append(changes, fixScalar(ce, "clinical_extraction."+k, k)...)
		}
	}

	switch nc := m["normalized_medical_concepts"].(type) {
	case map[string]any:
		for _, k := range conceptLists {
			changes = append(changes, fixList(nc, "normalized_medical_concepts."+k, k)...)
		}
	case nil:
		fresh := make(map[string]any, len(conceptLists))
		for _, k := range conceptLists {
			fresh[k] = []any{}
		}
		m["normalized_medical_concepts"] = fresh
		changes = append(changes, "normalized_medical_concepts(default)")
	}

	if ij, ok := m["insurance_justification"].(map[string]any); ok {
		for _, k := range evidenceLists {
			changes = append(changes, fixList(ij, "insurance_justification."+k, k)...)
		}
		if s, ok := ij["summary"].(string); ok {
			ij["summary"] = strings.TrimSpace(s)
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changes, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changes) > 0 {
		logger.Warn("llm.analysis.sanitize_applied", zap.Strings("changes", changes))
	}
	return out, changes, nil
}

func fixList(m map[string]any, path, key string) []string {
	switch t := m[key].(type) {
	case nil:
		m[key] = []any{}
		return []string{path + "(default)"}
	case []any:
		out := make([]any, 0, len(t))
		dropped := false
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				dropped = true
				continue
			}
			if s = strings.TrimSpace(s); s == "" {
				dropped = true
				continue
			}
			out = append(out, s)
		}
		m[key] = out
		if dropped {
			return []string{path + "(entries)"}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			m[key] = []any{s}
		} else {
			m[key] = []any{}
		}
		return []string{path + "(wrapped)"}
	}
	return nil
}

func fixScalar(m map[string]any, path, key string) []string {
	switch t := m[key].(type) {
	case nil:
		m[key] = ""
		return []string{path + "(default)"}
	case string:
		m[key] = strings.TrimSpace(t)
	}
	return nil
}
