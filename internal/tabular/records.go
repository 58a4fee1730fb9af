package tabular

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMissingColumns is returned when an input table lacks required columns
var ErrMissingColumns = eris.New("tabular: missing required columns")

// ErrUnsupportedFormat is returned for file extensions other than csv, jsonl and json
var ErrUnsupportedFormat = eris.New("tabular: unsupported file format")

// record is one input row keyed by column name
type record map[string]string

func (r record) get(key string) string {
	return strings.TrimSpace(r[key])
}

// table is a header plus rows read from CSV or JSON lines
type table struct {
	columns map[string]bool
	rows    []record
}

func (t table) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !t.columns[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eris.Wrapf(ErrMissingColumns, "%s", strings.Join(missing, ", "))
	}
	return nil
}

// Format is a table file encoding
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
)

// FormatOf infers the encoding from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", eris.Wrapf(ErrUnsupportedFormat, "%s", path)
	}
}

func readTable(path string) (table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return table{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return table{}, eris.Wrapf(err, "tabular: open %s", path)
	}
	defer func() { _ = f.Close() }()

	switch format {
	case FormatCSV:
		return readCSV(f)
	case FormatJSONL:
		return readJSONL(f)
	default:
		return readJSONArray(f)
	}
}

func readCSV(r io.Reader) (table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return table{columns: map[string]bool{}}, nil
	}
	if err != nil {
		return table{}, eris.Wrap(err, "tabular: read csv header")
	}

	t := table{columns: make(map[string]bool, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		t.columns[h] = true
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table{}, eris.Wrap(err, "tabular: read csv row")
		}
		rec := make(record, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func readJSONL(r io.Reader) (table, error) {
	t := table{columns: map[string]bool{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return table{}, eris.Wrapf(err, "tabular: decode line %d", line)
		}
		t.add(obj)
	}
	if err := scanner.Err(); err != nil {
		return table{}, eris.Wrap(err, "tabular: scan jsonl")
	}
	return t, nil
}

func readJSONArray(r io.Reader) (table, error) {
	var objs []map[string]any
	if err := json.NewDecoder(r).Decode(&objs); err != nil {
		return table{}, eris.Wrap(err, "tabular: decode json array")
	}
	t := table{columns: map[string]bool{}}
	for _, obj := range objs {
		t.add(obj)
	}
	return t, nil
}

// add flattens a JSON object into a record; nested values are re-encoded as JSON
func (t *table) add(obj map[string]any) {
	rec := make(record, len(obj))
	for k, v := range obj {
		t.columns[k] = true
		switch x := v.(type) {
		case nil:
			rec[k] = ""
		case string:
			rec[k] = x
		case map[string]any, []any:
			raw, _ := json.Marshal(x)
			rec[k] = string(raw)
		default:
			rec[k] = fmt.Sprint(x)
		}
	}
	t.rows = append(t.rows, rec)
}
