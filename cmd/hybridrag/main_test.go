package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
	"github.com/efebarandurmaz/hybridrag/internal/ingest"
	"github.com/efebarandurmaz/hybridrag/internal/llm"
)

// offlineEnv points every backend at in-process implementations.
func offlineEnv(t *testing.T) (papers, corpusDir string) {
	t.Helper()
	dir := t.TempDir()
	papers = filepath.Join(dir, "papers")
	corpusDir = filepath.Join(dir, "corpus")
	require.NoError(t, os.MkdirAll(papers, 0o755))

	t.Setenv("HYBRIDRAG_VECTOR_BACKEND", "memory")
	t.Setenv("HYBRIDRAG_GRAPH_BACKEND", "memory")
	t.Setenv("HYBRIDRAG_EMBEDDING_MODEL", "hash")
	t.Setenv("HYBRIDRAG_EMBEDDING_DIMENSION", "64")
	t.Setenv("HYBRIDRAG_INGEST_PAPERS_DIR", papers)
	t.Setenv("HYBRIDRAG_INGEST_CORPUS_DIR", corpusDir)
	t.Setenv("HYBRIDRAG_INGEST_LEDGER_PATH", filepath.Join(dir, "ledger.db"))
	t.Setenv("HYBRIDRAG_LOG_LEVEL", "error")
	return papers, corpusDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range newRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"extract", "ingest", "ask", "chat", "models", "serve", "status"} {
		assert.True(t, names[want], want)
	}
}

func TestExtractThenIngest(t *testing.T) {
	papers, corpusDir := offlineEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(papers, "p1.txt"), []byte("Autism screening in toddlers."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(papers, "notes.docx"), []byte("ignored"), 0o644))

	out, err := run(t, "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "p1.txt -> p1.json")
	assert.FileExists(t, filepath.Join(corpusDir, "p1.json"))

	out, err = run(t, "ingest", "--json")
	require.NoError(t, err)
	var report ingest.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.VectorLoaded)
	assert.Equal(t, 1, report.GraphLoaded)
}

func TestIngest_PlainReportCountsBrokenSnapshot(t *testing.T) {
	_, corpusDir := offlineEnv(t)
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "bad.json"), []byte("{"), 0o644))

	out, err := run(t, "ingest", "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "INGESTION REPORT")
	assert.Contains(t, out, "bad.json")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := run(t, "ask")
	assert.Error(t, err)
}

func modelServer(t *testing.T, ids ...string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		data := make([]map[string]string, len(ids))
		for i, id := range ids {
			data[i] = map[string]string{"id": id, "object": "model"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestModels_MarksSelected(t *testing.T) {
	offlineEnv(t)
	t.Setenv("HYBRIDRAG_LLM_BASE_URL", modelServer(t, "llama3:8b", "qwen2.5:3b"))

	out, err := run(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "* qwen2.5:3b")
	assert.Contains(t, out, "Answers use: qwen2.5:3b")
}

func TestModels_NoMatchPrintsRemediationOnce(t *testing.T) {
	offlineEnv(t)
	t.Setenv("HYBRIDRAG_LLM_BASE_URL", modelServer(t, "llama3:8b"))

	out, err := run(t, "models")
	require.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Contains(t, out, "No compatible model found.\n  run: "+llm.DefaultPullHint+"\n")
	assert.NotContains(t, out, "Run:")
}
