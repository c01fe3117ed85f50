package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/indexer"
	"github.com/hyperjump/policyrag/internal/retrieval"
	"github.com/hyperjump/policyrag/internal/storage"
	"github.com/hyperjump/policyrag/pkg/utils"
)

// policyDocument is one file of the test corpus.
type policyDocument struct {
	Name string
	Text string
}

// queryCase names the document that must rank first for Query.
type queryCase struct {
	Query    string
	Expected string
}

var policyCorpus = []policyDocument{
	{"vacation.txt", "Annual vacation: full-time employees receive fifteen paid vacation days each calendar year. Unused vacation days carry over up to five."},
	{"remote.md", "# Remote work\nStaff may work remotely three times per week with manager approval. Remote staff must stay reachable during core hours."},
	{"parental.docx", "Parental leave: new parents receive twelve weeks of paid parental leave after birth or adoption."},
	{"expenses.xlsx", "Expense reimbursement: submit travel expense receipts within thirty calendar days."},
	{"conduct.pptx", "Code of conduct: harassment and discrimination are prohibited. Report violations to human resources."},
	{"security.odp", "Information security: passwords rotate every ninety days. Laptops require disk encryption."},
	{"benefits.ods", "Health benefits: dental and vision insurance enrollment opens each November."},
}

var policyQueries = []queryCase{
	{"How many paid vacation days do employees receive?", "vacation.txt"},
	{"Can staff work remotely?", "remote.md"},
	{"parental leave after adoption", "parental.docx"},
	{"travel expense reimbursement receipts", "expenses.xlsx"},
	{"how do I report harassment", "conduct.pptx"},
	{"laptop disk encryption", "security.odp"},
	{"dental insurance enrollment", "benefits.ods"},
}

var stopWords = map[string]bool{
	"the": true, "and": true, "how": true, "many": true, "can": true, "do": true,
	"after": true, "each": true, "are": true, "with": true, "per": true, "may": true,
}

// wordEmbedder is a bag-of-words embedder: each word is hashed into a bucket
// and the counts are normalised, so cosine distance follows word overlap.
type wordEmbedder struct {
	dims int
}

func (e wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

func (wordEmbedder) Close() error { return nil }

func writeCorpus(t *testing.T, dir string) {
	t.Helper()
	for _, doc := range policyCorpus {
		content := encodeDocument(t, filepath.Ext(doc.Name), doc.Text)
		require.NoError(t, os.WriteFile(filepath.Join(dir, doc.Name), content, 0600))
	}
}

func encodeDocument(t *testing.T, ext, text string) []byte {
	t.Helper()
	switch ext {
	case ".docx":
		return zipWith(t, "word/document.xml",
			`<w:document><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
	case ".pptx":
		return zipWith(t, "ppt/slides/slide1.xml",
			`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+text+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	case ".odp":
		return zipWith(t, "content.xml",
			`<office:document><office:body><draw:page draw:name="p1"><draw:text-box><text:p>`+text+`</text:p></draw:text-box></draw:page></office:body></office:document>`)
	case ".ods":
		return zipWith(t, "content.xml",
			`<office:document><office:body><table:table table:name="Sheet1"><table:table-row><table:table-cell><text:p>`+text+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`)
	case ".xlsx":
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetCellValue("Sheet1", "A1", text))
		var buf bytes.Buffer
		_, err := f.WriteTo(&buf)
		require.NoError(t, err)
		return buf.Bytes()
	default:
		return []byte(text)
	}
}

func zipWith(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCorpus_eachQueryFindsItsPolicy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(src, 0755))
	writeCorpus(t, src)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Store.Path = filepath.Join(dir, "policyrag.db")
	store, err := storage.Open(&cfg.Store, nil)
	require.NoError(t, err)
	defer store.Close()

	emb := wordEmbedder{dims: 1024}
	idx, err := indexer.NewIndexer(store, emb, nil, &cfg.Ingest, &cfg.Store)
	require.NoError(t, err)
	ctx := context.Background()

	report, err := idx.IngestDirectory(ctx, src)
	require.NoError(t, err)
	for _, d := range report.Documents {
		assert.Equal(t, indexer.OutcomeIngested, d.Outcome, "%s: %s", d.DocumentID, d.Error)
	}
	require.Equal(t, len(policyCorpus), report.Ingested)
	require.Equal(t, len(policyCorpus), report.CollectionCount)

	ret := retrieval.NewRetriever(store, emb, cfg.Store.Collection, 3)
	gen := &echoGenerator{}
	p := New(ret, gen)
	for _, qc := range policyQueries {
		t.Run(qc.Expected, func(t *testing.T) {
			hits, err := ret.Search(ctx, qc.Query)
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			assert.Equal(t, qc.Expected, hits[0].SourceDocument, "query %q", qc.Query)

			res, err := p.Run(ctx, qc.Query)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(strings.SplitN(res.Context, "\n\n", 2)[0], "(Source: "+qc.Expected+")"),
				"context %q", res.Context)
		})
	}

	again, err := idx.IngestDirectory(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, len(policyCorpus), again.Skipped)
	assert.Equal(t, len(policyCorpus), again.CollectionCount)
}
