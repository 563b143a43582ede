package data

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadTSV reads examples from lines of the form
//
//	id <TAB> label <TAB> token token ... [<TAB> field=tok tok ...]...
//
// Empty lines and lines starting with '#' are skipped. An empty label column
// marks an unlabeled example.
func ReadTSV(r io.Reader) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var examples []*Example
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 tab-separated columns, got %d", line, len(cols))
		}
		id, err := strconv.Atoi(strings.TrimSpace(cols[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q: %w", line, cols[0], err)
		}
		e := NewExample(id, Label(strings.TrimSpace(cols[1])), strings.Fields(cols[2])...)
		for _, extra := range cols[3:] {
			name, toks, ok := strings.Cut(extra, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: field column %q lacks name=", line, extra)
			}
			e.Fields[strings.TrimSpace(name)] = strings.Fields(toks)
		}
		examples = append(examples, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewDataset(nil, examples...)
}

// WriteTSV writes the dataset in the ReadTSV format.
func WriteTSV(w io.Writer, d *Dataset) error {
	bw := bufio.NewWriter(w)
	for _, e := range d.Examples() {
		if _, err := fmt.Fprintf(bw, "%d\t%s\t%s", e.ID, e.Label, strings.Join(e.Field(DefaultField), " ")); err != nil {
			return err
		}
		for name, toks := range e.Fields {
			if name == DefaultField {
				continue
			}
			if _, err := fmt.Fprintf(bw, "\t%s=%s", name, strings.Join(toks, " ")); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
