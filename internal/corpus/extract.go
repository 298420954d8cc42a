package corpus

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

type AbstractOptions struct {
	HasHeader   bool
	ColumnName  string
	ColumnIndex int
}

// DefaultAbstractOptions reads the third column of a headerless dataset.
func DefaultAbstractOptions() AbstractOptions {
	return AbstractOptions{ColumnIndex: 2}
}

// ExtractAbstractsCSV writes one corpus line per CSV record, taken from the
// selected text column, lowercased and stripped to a-z. Line breaks inside a
// field start a new corpus line. It returns the number of lines written.
func ExtractAbstractsCSV(in io.Reader, out io.Writer, opts AbstractOptions) (int, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	writer := bufio.NewWriter(out)

	colIdx := opts.ColumnIndex
	row := 0
	if opts.HasHeader {
		header, err := reader.Read()
		if err == io.EOF {
			return 0, writer.Flush()
		}
		if err != nil {
			return 0, fmt.Errorf("read abstracts header: %w", err)
		}
		row++
		if name := strings.TrimSpace(opts.ColumnName); name != "" {
			colIdx = -1
			for i, h := range header {
				if strings.EqualFold(strings.TrimSpace(h), name) {
					colIdx = i
					break
				}
			}
			if colIdx < 0 {
				return 0, fmt.Errorf("abstracts column %q not found in header", name)
			}
		}
	}
	if colIdx < 0 {
		return 0, fmt.Errorf("abstracts column index must be >= 0")
	}

	lines := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("read abstracts row %d: %w", row+1, err)
		}
		row++
		if colIdx >= len(record) {
			continue
		}
		for _, part := range strings.Split(record[colIdx], "\n") {
			cleaned := lettersOnly(part)
			if cleaned == "" {
				continue
			}
			if _, err := writer.WriteString(cleaned); err != nil {
				return lines, err
			}
			if err := writer.WriteByte('\n'); err != nil {
				return lines, err
			}
			lines++
		}
	}
	return lines, writer.Flush()
}

func lettersOnly(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			b.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			b.WriteByte(ch + ('a' - 'A'))
		}
	}
	return b.String()
}
