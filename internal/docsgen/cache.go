package docsgen

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sort"

	"github.com/qasimio/operon/internal/fileutil"
)

// CacheFile stores oracle summaries keyed by symbol content hash,
// relative to the repo root. JSONL, one record per line.
const CacheFile = ".operon/summaries.jsonl"

// Record is one cached summary. A symbol whose content hash is
// unchanged never re-consults the oracle.
type Record struct {
	SymbolID    string `json:"symbol_id"`
	File        string `json:"file"`
	Kind        string `json:"kind"`
	ContentHash string `json:"content_hash"`
	Model       string `json:"model,omitempty"`
	Summary     string `json:"summary"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// CacheKey derives the lookup key for one symbol version.
func CacheKey(symbolID, contentHash, model string) string {
	return fileutil.HashBytes([]byte(symbolID + "|" + contentHash + "|" + model))
}

// LoadCache reads the summary cache, skipping malformed lines.
func LoadCache(path string) map[string]Record {
	cache := make(map[string]Record)
	data, err := os.ReadFile(path)
	if err != nil {
		return cache
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		if record.SymbolID == "" || record.ContentHash == "" {
			continue
		}
		cache[CacheKey(record.SymbolID, record.ContentHash, record.Model)] = record
	}
	return cache
}

// WriteCache persists the cache sorted by file then symbol, so diffs
// of the cache file stay reviewable.
func WriteCache(path string, cache map[string]Record) error {
	records := make([]Record, 0, len(cache))
	for _, record := range cache {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].File == records[j].File {
			return records[i].SymbolID < records[j].SymbolID
		}
		return records[i].File < records[j].File
	})

	var buf bytes.Buffer
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0644)
}
