// Package ingest turns external documents into activity entries: entry files
// written by hand or exported from a spreadsheet, and the JSON payload of the
// invoice OCR function. It also imports entries into a repository in batches.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
)

// Format names an entry file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported entry file format") //nolint:gochecknoglobals // sentinel

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// entryFile is the document form of YAML and JSON files. A bare list of
// entries is accepted as well.
type entryFile struct {
	Entries []greenops.ActivityEntry `json:"entries" yaml:"entries"`
}

// LoadEntries reads and validates every entry of the file at path.
func LoadEntries(ctx context.Context, path string) ([]greenops.ActivityEntry, error) {
	log := logging.FromContext(ctx)
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	entries, err := DecodeEntries(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().
		Str("component", "ingest").
		Str("operation", "load_entries").
		Str("path", path).
		Str("format", string(format)).
		Int("entry_count", len(entries)).
		Msg("entries loaded")
	return entries, nil
}

// DecodeEntries decodes entries from r and validates each one. The error of
// an invalid entry names its position.
func DecodeEntries(r io.Reader, format Format) ([]greenops.ActivityEntry, error) {
	var (
		entries []greenops.ActivityEntry
		err     error
	)
	switch format {
	case FormatYAML:
		entries, err = decodeDocument(r, yaml.Unmarshal)
	case FormatJSON:
		entries, err = decodeDocument(r, json.Unmarshal)
	case FormatCSV:
		entries, err = decodeCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		canonical, cErr := e.Canonical()
		if cErr != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, e.ID, cErr)
		}
		if vErr := canonical.Validate(); vErr != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i+1, e.ID, vErr)
		}
		entries[i] = canonical
	}
	return entries, nil
}

func decodeDocument(r io.Reader, unmarshal func([]byte, any) error) ([]greenops.ActivityEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var list []greenops.ActivityEntry
	if err = unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc entryFile
	if err = unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding entries: %w", err)
	}
	return doc.Entries, nil
}

// csvColumns maps header names to setters. Headers are matched case
// insensitively; unknown columns are ignored.
//
//nolint:gochecknoglobals // Read-only lookup table.
var csvColumns = map[string]func(e *greenops.ActivityEntry, v string) error{
	"id":                     func(e *greenops.ActivityEntry, v string) error { e.ID = v; return nil },
	"scope":                  setScope,
	"category":               func(e *greenops.ActivityEntry, v string) error { e.Category = v; return nil },
	"subcategory":            func(e *greenops.ActivityEntry, v string) error { e.Subcategory = v; return nil },
	"type":                   func(e *greenops.ActivityEntry, v string) error { e.Type = v; return nil },
	"description":            func(e *greenops.ActivityEntry, v string) error { e.Description = v; return nil },
	"formula_detail":         func(e *greenops.ActivityEntry, v string) error { e.FormulaDetail = v; return nil },
	"quantity":               floatField(func(e *greenops.ActivityEntry, f float64) { e.Quantity = f }),
	"unit":                   func(e *greenops.ActivityEntry, v string) error { e.Unit = v; return nil },
	"gas":                    setGas,
	"emission_factor_value":  floatField(func(e *greenops.ActivityEntry, f float64) { e.EmissionFactorValue = f }),
	"emission_factor_unit":   func(e *greenops.ActivityEntry, v string) error { e.EmissionFactorUnit = v; return nil },
	"emission_factor_source": func(e *greenops.ActivityEntry, v string) error { e.EmissionFactorSource = v; return nil },
	"uncertainty_percent":    setUncertainty,
	"status":                 func(e *greenops.ActivityEntry, v string) error { e.Status = greenops.EntryStatus(v); return nil },
	"confidence":             floatField(func(e *greenops.ActivityEntry, f float64) { e.Confidence = f }),
}

func decodeCSV(r io.Reader) ([]greenops.ActivityEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	if !containsAll(header, "scope", "quantity", "emission_factor_value") {
		return nil, errors.New("csv header must contain scope, quantity and emission_factor_value")
	}

	var entries []greenops.ActivityEntry
	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, readErr)
		}
		var e greenops.ActivityEntry
		for i, value := range record {
			set, ok := csvColumns[header[i]]
			if !ok || value == "" {
				continue
			}
			if setErr := set(&e, value); setErr != nil {
				return nil, fmt.Errorf("csv line %d, column %s: %w", line, header[i], setErr)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func setScope(e *greenops.ActivityEntry, v string) error {
	s, err := greenops.ParseScope(v)
	if err != nil {
		return err
	}
	e.Scope = s
	return nil
}

func setGas(e *greenops.ActivityEntry, v string) error {
	g, err := greenops.ParseGas(v)
	if err != nil {
		return err
	}
	e.Gas = g
	return nil
}

func setUncertainty(e *greenops.ActivityEntry, v string) error {
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return err
	}
	e.UncertaintyPercent = &f
	return nil
}

func floatField(set func(*greenops.ActivityEntry, float64)) func(*greenops.ActivityEntry, string) error {
	return func(e *greenops.ActivityEntry, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		set(e, f)
		return nil
	}
}

func containsAll(have []string, want ...string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
