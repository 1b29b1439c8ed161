package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const corpusCSV = `PACKAGE CODE,PACKAGE NAME,Procedure,SPECIALITY
P001,Cholecystectomy Open,Open gallbladder removal,General Surgery
P002,Knee Replacement,Total knee arthroplasty,Orthopaedics
`

const analysisAnswer = `{
  "clinical_extraction": {"diagnoses": ["Cholelithiasis"], "procedures": ["Open cholecystectomy"], "complications": []},
  "package_recommendation": {
    "primary_package": {"package_code": "P001", "package_name": "Cholecystectomy Open", "reason": "main procedure"},
    "add_on_packages": [],
    "rejected_packages": []
  },
  "insurance_justification": {"summary": "Documented open cholecystectomy.", "confidence_score": 0.8}
}`

// fakeChatServer answers keyword calls (no response_format) and analysis calls
// (json_schema response_format) the way chat/completions does.
func fakeChatServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content := `["cholecystectomy"]`
		if _, ok := body["response_format"]; ok {
			content = "```json\n" + analysisAnswer + "\n```"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "package_list_1.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(corpusCSV), 0o600))

	cfg := fmt.Sprintf(`llm:
  provider: openai
  api_key: sk-test
  base_url: %q
corpus:
  sources:
    - %q
log:
  level: error
`, baseURL, csvPath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:0")

	out, err := execute(t, "search", "--config", cfg, "KNEE", "gallbladder")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "P001", got[0]["package_code"])
	assert.Equal(t, "P002", got[1]["package_code"])
	assert.Equal(t, "package_list_1.csv", filepath.Base(got[0]["_source"].(string)))

	out, err = execute(t, "search", "--config", cfg, "--limit", "1", "surgery", "ortho")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 1)

	out, err = execute(t, "search", "--config", cfg, "dialysis")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestAnalyzeCommand(t *testing.T) {
	srv, calls := fakeChatServer(t)
	cfg := writeConfig(t, srv.URL)

	doc := filepath.Join(t.TempDir(), "summary.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4\n%%EOF\n"), 0o600))
	xlsx := filepath.Join(t.TempDir(), "out.xlsx")

	out, err := execute(t, "analyze", "--config", cfg, "--xlsx", xlsx, doc)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	rec := res["package_recommendation"].(map[string]any)
	assert.Equal(t, "P001", rec["primary_package"].(map[string]any)["package_code"])
	assert.EqualValues(t, 1, rec["total_applicable_packages"])

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "P001", v)
}

func TestAnalyzeCommand_Directory(t *testing.T) {
	srv, _ := fakeChatServer(t)
	cfg := writeConfig(t, srv.URL)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o600))

	out, err := execute(t, "analyze", "--config", cfg, "--full", dir)
	require.Error(t, err, "b.pdf is empty")
	assert.Contains(t, err.Error(), "1 of 2")

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.NotNil(t, entries[0]["analysis"])
	assert.Equal(t, []any{"cholecystectomy"}, entries[0]["analysis"].(map[string]any)["keywords"])
	assert.NotEmpty(t, entries[1]["error"])
}

func TestAnalyzeCommand_DirectoryWorkbooksAndDuplicates(t *testing.T) {
	srv, calls := fakeChatServer(t)
	cfg := writeConfig(t, srv.URL)

	dir := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	write("a.pdf", "%PDF-1.4\n")
	write("copy.pdf", "%PDF-1.4\n")
	write("nested/a.pdf", "%PDF-1.5\n")
	write("nested/a.png", "\x89PNG\r\n\x1a\n")
	outDir := filepath.Join(t.TempDir(), "books")

	out, err := execute(t, "analyze", "--config", cfg, "--xlsx", outDir, dir)
	require.NoError(t, err)
	assert.Equal(t, int32(6), calls.Load(), "the copy is analyzed once")

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)

	byName := map[string]map[string]any{}
	for _, e := range entries {
		rel, err := filepath.Rel(dir, e["path"].(string))
		require.NoError(t, err)
		byName[filepath.ToSlash(rel)] = e
	}
	assert.Equal(t, filepath.Join(dir, "a.pdf"), byName["copy.pdf"]["duplicate_of"])
	assert.Nil(t, byName["copy.pdf"]["analysis"])
	assert.Equal(t, byName["a.pdf"]["sha256"], byName["copy.pdf"]["sha256"])
	assert.NotEqual(t, byName["a.pdf"]["sha256"], byName["nested/a.pdf"]["sha256"])

	for _, rel := range []string{"a.pdf.xlsx", "nested/a.pdf.xlsx", "nested/a.png.xlsx"} {
		assert.FileExists(t, filepath.Join(outDir, filepath.FromSlash(rel)))
	}
	assert.NoFileExists(t, filepath.Join(outDir, "copy.pdf.xlsx"))
}

func TestAnalyzeCommand_UnsupportedFile(t *testing.T) {
	srv, calls := fakeChatServer(t)
	cfg := writeConfig(t, srv.URL)

	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("plain text"), 0o600))

	_, err := execute(t, "analyze", "--config", cfg, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported media type")
	assert.Zero(t, calls.Load())
}
