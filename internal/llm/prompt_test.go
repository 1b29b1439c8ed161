package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/corpus"
)

func TestBuildAnalysisPrompt_EmbedsCandidatesVerbatim(t *testing.T) {
	cands := []corpus.Record{
		{Code: "P001", Name: "Cholecystectomy Open", Extra: map[string]string{"Rate": "25000"}, Source: "package_list_1.csv"},
	}
	prompt, err := BuildAnalysisPrompt(cands)
	require.NoError(t, err)

	assert.Contains(t, prompt, `"package_code": "P001"`)
	assert.Contains(t, prompt, `"package_name": "Cholecystectomy Open"`)
	assert.Contains(t, prompt, `"Rate": "25000"`)
	assert.Contains(t, prompt, `"_source": "package_list_1.csv"`)
	assert.Contains(t, prompt, constants.NoMatchCode)
	assert.Contains(t, prompt, `"confidence_score"`)
	assert.NotContains(t, prompt, "candidate list is EMPTY")
}

func TestBuildAnalysisPrompt_EmptyCandidates(t *testing.T) {
	prompt, err := BuildAnalysisPrompt(nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "[]")
	assert.Contains(t, prompt, "candidate list is EMPTY")
}

func TestBuildKeywordPrompt(t *testing.T) {
	assert.Contains(t, BuildKeywordPrompt(), "JSON array of strings")
}
