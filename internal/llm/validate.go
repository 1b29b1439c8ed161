package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
	"github.com/joseph-ayodele/mediclaim/internal/entity"
)

// CompileSchema compiles a schema map with the draft 2020-12 compiler.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates data against a schema map.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema(schemaMap)
	if err != nil {
		return err
	}
	return validateAgainst(schema, data)
}

func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var analysisSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return CompileSchema(BuildAnalysisJSONSchema())
})

// ValidateAnalysis turns unwrapped model JSON into an AnalysisResult. It repairs
// optional fields, checks the schema, then checks the recommendation against the
// candidates the model was shown. On a semantic failure the decoded result is
// returned alongside the common.ValidationErrors so callers can log it.
func ValidateAnalysis(raw []byte, candidates []corpus.Record) (entity.AnalysisResult, error) {
	cleaned, _, err := SanitizeAnalysisJSON(raw, nil)
	if errors.Is(err, errNotObject) {
		return entity.AnalysisResult{}, common.ValidationErrors{{Field: "$", Message: "must be a JSON object"}}
	}
	if err != nil {
		return entity.AnalysisResult{}, &MalformedOutputError{Stage: "validate", Raw: string(raw), Err: err}
	}

	schema, err := analysisSchema()
	if err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if err := validateAgainst(schema, cleaned); err != nil {
		return entity.AnalysisResult{}, schemaErrors(err)
	}

	var out entity.AnalysisResult
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return entity.AnalysisResult{}, &MalformedOutputError{Stage: "validate", Raw: string(raw), Err: err}
	}

	if err := checkRecommendation(out.PackageRecommendation, candidates); err != nil {
		return out, err
	}
	out.PackageRecommendation.TotalApplicablePackages = out.PackageRecommendation.ApplicableCount()
	return out, nil
}

// schemaErrors flattens a jsonschema failure into one ValidationError per leaf cause.
func schemaErrors(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return common.ValidationErrors{{Field: "$", Message: err.Error()}}
	}
	var out common.ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, common.ValidationError{Field: pointerToPath(e.InstanceLocation), Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// pointerToPath turns a JSON pointer ("/a/b/0") into a dotted path ("a.b[0]").
func pointerToPath(ptr string) string {
	if ptr == "" || ptr == "/" {
		return "$"
	}
	var b strings.Builder
	for i, seg := range splitPointer(ptr) {
		if isIndex(seg) {
			fmt.Fprintf(&b, "[%s]", seg)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func splitPointer(ptr string) []string {
	var out []string
	for _, s := range strings.Split(ptr, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func checkRecommendation(rec entity.PackageRecommendation, candidates []corpus.Record) error {
	byCode := make(map[string]corpus.Record, len(candidates))
	for _, c := range candidates {
		if !c.HasCode() {
			continue
		}
		if _, dup := byCode[c.Code]; !dup {
			byCode[c.Code] = c
		}
	}

	v := common.NewValidator()
	const base = "package_recommendation"

	primary := rec.PrimaryPackage
	primaryField := base + ".primary_package"
	switch {
	case primary.IsNoMatch():
	case len(byCode) == 0:
		v.Add(primaryField+".package_code", primary.PackageCode,
			"must be "+constants.NoMatchCode+" when no candidates were retrieved")
	default:
		checkItem(v, primaryField, primary, byCode)
	}

	addOns := make(map[string]struct{}, len(rec.AddOnPackages))
	for i, item := range rec.AddOnPackages {
		field := fmt.Sprintf("%s.add_on_packages[%d]", base, i)
		switch {
		case item.IsNoMatch():
			v.Add(field+".package_code", item.PackageCode, "sentinel is only valid for the primary package")
			continue
		case !primary.IsNoMatch() && item.PackageCode == primary.PackageCode:
			v.Add(field+".package_code", item.PackageCode, "is already the primary package")
		}
		if _, dup := addOns[item.PackageCode]; dup {
			v.Add(field+".package_code", item.PackageCode, "is repeated in add_on_packages")
		}
		addOns[item.PackageCode] = struct{}{}
		checkItem(v, field, item, byCode)
	}

	for i, r := range rec.RejectedPackages {
		field := fmt.Sprintf("%s.rejected_packages[%d].package_code", base, i)
		if _, ok := byCode[r.PackageCode]; !ok {
			v.Add(field, r.PackageCode, "is not in the candidate list")
		}
		if !primary.IsNoMatch() && r.PackageCode == primary.PackageCode {
			v.Add(field, r.PackageCode, "is also the primary package")
		}
		if _, sel := addOns[r.PackageCode]; sel {
			v.Add(field, r.PackageCode, "is also an add-on package")
		}
	}

	return v.Error()
}

func checkItem(v *common.Validator, field string, item entity.PackageItem, byCode map[string]corpus.Record) {
	cand, ok := byCode[item.PackageCode]
	if !ok {
		v.Add(field+".package_code", item.PackageCode, "is not in the candidate list")
		return
	}
	if item.PackageName != cand.Name {
		v.Add(field+".package_name", item.PackageName, fmt.Sprintf("must match the candidate name %q", cand.Name))
	}
}
