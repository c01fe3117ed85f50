// Package cli renders command results for the policyrag CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/policyrag/internal/indexer"
	"github.com/hyperjump/policyrag/internal/pipeline"
	"github.com/hyperjump/policyrag/internal/retrieval"
	"github.com/hyperjump/policyrag/internal/storage"
	"github.com/hyperjump/policyrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// Fixed lines printed by the ask command.
const (
	ProcessingPrefix = "Processing query: "
	AnswerHeader     = "\nFinal Answer:"
	ErrorPrefix      = "Error processing query: "
	QueryPrompt      = "Please enter your query: "
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes the outcome of a pipeline run. runErr is the error
// returned by the run, if any; in text mode it is printed in place of the answer.
func WriteAnswer(w io.Writer, res *pipeline.Result, runErr error, format OutputFormat) error {
	if format == OutputJSON && res != nil {
		return writeJSON(w, res)
	}
	if runErr != nil {
		_, err := fmt.Fprintf(w, "%s%v\n", ErrorPrefix, runErr)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", AnswerHeader, res.Answer)
	return err
}

// WriteRetrieval writes the context blob, or the full retrieval as JSON.
func WriteRetrieval(w io.Writer, r *retrieval.Retrieval, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, r)
	}
	_, err := fmt.Fprintln(w, r.Context)
	return err
}

// WriteReport writes an ingestion report.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Ingested %s in %s\n", report.Directory, report.Duration.Round(time.Millisecond))
	for _, d := range report.Documents {
		switch d.Outcome {
		case indexer.OutcomeFailed:
			fmt.Fprintf(w, "  %-8s %s: %s\n", d.Outcome, d.DocumentID, utils.Truncate(d.Error, 200))
		case indexer.OutcomeSkipped:
			fmt.Fprintf(w, "  %-8s %s (already processed)\n", d.Outcome, d.DocumentID)
		default:
			fmt.Fprintf(w, "  %-8s %s: %d pages, %d/%d chunks stored\n",
				d.Outcome, d.DocumentID, d.Pages, d.ChunksStored, d.Chunks)
		}
	}
	_, err := fmt.Fprintf(w, "Documents: %d ingested, %d skipped, %d failed\nChunks stored: %d (failed: %d)\nCollection size: %d\n",
		report.Ingested, report.Skipped, report.Failed, report.ChunksStored, report.ChunksFailed, report.CollectionCount)
	return err
}

// WriteStatus writes the store status and effective configuration.
func WriteStatus(w io.Writer, st *storage.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	c := st.Config
	fmt.Fprintf(w, "Chunks (%s): %d\n", c.Collection, st.Chunks)
	fmt.Fprintf(w, "Processed documents (%s): %d\n", c.MarkerCollection, st.Documents)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(st.DiskUsageBytes))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Source directory: %s\n", c.SourceDirectory)
	fmt.Fprintf(w, "  Store:            %s (%s, %s)\n", c.StorePath, c.StoreType, c.Metric)
	fmt.Fprintf(w, "  Embedding:        %s / %s (cache %d)\n", c.EmbeddingProvider, c.EmbeddingModel, c.EmbeddingCacheSize)
	fmt.Fprintf(w, "  Generation model: %s\n", c.GenerationModel)
	fmt.Fprintf(w, "  Chunking:         size %d, overlap %d\n", c.ChunkSize, c.ChunkOverlap)
	_, err := fmt.Fprintf(w, "  Results per query: %d\n", c.K)
	return err
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
