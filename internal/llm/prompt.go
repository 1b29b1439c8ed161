package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
)

// BuildKeywordPrompt asks for a short list of search terms for the package lookup.
func BuildKeywordPrompt() string {
	parts := []string{
		"Analyze the attached medical discharge summary.",
		"Extract a list of 5-10 specific clinical keywords that would help find the appropriate insurance package in a database.",
		"Focus on specific procedure names (e.g. 'Hepaticojejunostomy', 'Cholecystectomy'), the anatomical locations involved, and specific device or implant types if any.",
		`Return ONLY a JSON array of strings. Example: ["Cholecystectomy", "Biliary Stricture", "Roux-en-Y"]`,
	}
	return strings.Join(parts, "\n")
}

// BuildAnalysisPrompt embeds the candidate list verbatim as the only selection universe,
// together with the NO_MATCH rule and the output schema.
func BuildAnalysisPrompt(candidates []corpus.Record) (string, error) {
	list := candidates
	if list == nil {
		list = []corpus.Record{}
	}
	candidatesJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}
	schemaJSON, err := json.MarshalIndent(BuildAnalysisJSONSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an expert medical coder and insurance specialist for PMJAY/MAA schemes.\n")
	b.WriteString("Analyze the attached hospital discharge summary and recommend the applicable insurance packages.\n\n")

	b.WriteString("CRITICAL RULES:\n")
	b.WriteString("1. You MUST ONLY select packages from the CANDIDATE LIST below.\n")
	b.WriteString("2. Do not invent package names or codes.\n")
	b.WriteString("3. Copy package_code and package_name EXACTLY as they appear in the candidate list.\n")
	fmt.Fprintf(&b, "4. If no suitable package exists in the list, set primary_package.package_code to %q and explain why in reason.\n", constants.NoMatchCode)
	if len(candidates) == 0 {
		fmt.Fprintf(&b, "5. The candidate list is EMPTY: primary_package.package_code MUST be %q and add_on_packages MUST be empty.\n", constants.NoMatchCode)
	}

	b.WriteString("\n==== CANDIDATE PACKAGE LIST (SELECT ONLY FROM THIS LIST) ====\n")
	b.Write(candidatesJSON)
	b.WriteString("\n==== END OF CANDIDATE LIST ====\n\n")

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Extract all clinical details (diagnoses, procedures, complications, surgery type, anesthesia, admission type) from the document.\n")
	b.WriteString("2. Group them into normalized_medical_concepts: primary conditions, definitive procedures and supporting procedures.\n")
	b.WriteString("3. Review ONLY the candidate packages listed above.\n")
	b.WriteString("4. primary_package is the package for the MAIN procedure. Other applicable packages go in add_on_packages with a justification.\n")
	b.WriteString("5. Candidates you considered and ruled out go in rejected_packages with the reason.\n")
	b.WriteString("6. A package code may appear in only one of primary_package, add_on_packages and rejected_packages.\n")
	b.WriteString("7. confidence_score is a number between 0.0 and 1.0.\n\n")

	b.WriteString("Return ONLY JSON that matches this JSON Schema:\n")
	b.Write(schemaJSON)
	b.WriteString("\n")
	return b.String(), nil
}
