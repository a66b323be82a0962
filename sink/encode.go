package sink

import (
	"bytes"
	"encoding/csv"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"

	"wspranalytics/analyze"
)

var jsonAPI = jsoniter.Config{
	EscapeHTML:    true,
	IndentionStep: 4,
}.Froze()

func encodeCSV(t analyze.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			record[i] = cellString(row[i])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeJSON renders the table as an array of records. The stream writer
// keeps keys in column order; a map-based marshal would sort them.
func encodeJSON(t analyze.Table) ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, row := range t.Rows {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		for j, col := range t.Columns {
			if j > 0 {
				stream.WriteMore()
			}
			stream.WriteObjectField(col)
			writeJSONCell(stream, row[j])
		}
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

func writeJSONCell(stream *jsoniter.Stream, v any) {
	switch c := v.(type) {
	case string:
		stream.WriteString(c)
	case int:
		stream.WriteInt(c)
	case float64:
		stream.WriteFloat64(c)
	default:
		stream.WriteVal(v)
	}
}

func encodeText(t analyze.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	writeTabLine(w, t.Columns)
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			line[i] = cellString(row[i])
		}
		writeTabLine(w, line)
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTabLine(w *tabwriter.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			w.Write([]byte{'\t'})
		}
		w.Write([]byte(c))
	}
	w.Write([]byte{'\n'})
}
