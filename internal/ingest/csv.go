// Package ingest parses delivered fact files into raw records for the
// append-only fact layer. Values are kept verbatim; typing happens in
// the pipeline's normalization node.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mega-minerals/oreflow/internal/normalize"
)

// ReadCSV parses a fact file. The header row names the raw columns;
// each following row becomes one record keyed by header.
func ReadCSV(r io.Reader) ([]normalize.Record, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	for i, col := range header {
		header[i] = strings.TrimSpace(col)
	}

	var out []normalize.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}
		rec := make(normalize.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadFile parses one fact file from disk.
func ReadFile(path string) ([]normalize.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	recs, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	return recs, nil
}

// DiscoverDir maps fact streams to file paths for a directory of
// <stream>.csv files. Unknown files are ignored; the caller decides
// whether missing streams matter.
func DiscoverDir(dir string, streams []string) (map[string]string, error) {
	known := make(map[string]bool, len(streams))
	for _, s := range streams {
		known[s] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read dir %s", dir)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		stream := strings.TrimSuffix(name, ".csv")
		if known[stream] {
			out[stream] = filepath.Join(dir, name)
		}
	}
	return out, nil
}
