package pipeline

import (
	"fmt"
	"strings"
)

// CleaningStats counts what DataCleaner did to a table.
type CleaningStats struct {
	TotalRows     int `json:"total_rows"`
	Kept          int `json:"kept"`
	DroppedTarget int `json:"dropped_target"`
	FilledBlanks  int `json:"filled_blanks"`
}

// DataCleaner trims cells, fills blank numeric cells with zero and drops rows
// whose target is not one of the known labels.
type DataCleaner struct {
	TargetColumn string
	ValidTargets []string
	FillZero     []string
}

// NewDataCleaner returns a cleaner for the schema's target and blank-prone
// numeric columns.
func NewDataCleaner(schema Schema) *DataCleaner {
	return &DataCleaner{
		TargetColumn: schema.TargetColumn,
		ValidTargets: []string{schema.PositiveLabel, schema.NegativeLabel},
		FillZero:     schema.FillZeroColumns,
	}
}

// Clean returns a cleaned copy of t.
func (dc *DataCleaner) Clean(t *Table) (*Table, CleaningStats, error) {
	stats := CleaningStats{TotalRows: len(t.Rows)}
	target := t.Column(dc.TargetColumn)
	if target < 0 {
		return nil, stats, fmt.Errorf("target column %q not found", dc.TargetColumn)
	}
	fill := make(map[int]bool)
	for _, name := range dc.FillZero {
		if idx := t.Column(name); idx >= 0 {
			fill[idx] = true
		}
	}
	valid := make(map[string]bool, len(dc.ValidTargets))
	for _, v := range dc.ValidTargets {
		valid[v] = true
	}

	cleaned := &Table{Header: append([]string(nil), t.Header...)}
	for _, row := range t.Rows {
		out := make([]string, len(row))
		for i, cell := range row {
			out[i] = strings.TrimSpace(cell)
			if out[i] == "" && fill[i] {
				out[i] = "0"
				stats.FilledBlanks++
			}
		}
		if !valid[out[target]] {
			stats.DroppedTarget++
			continue
		}
		cleaned.Rows = append(cleaned.Rows, out)
	}
	stats.Kept = len(cleaned.Rows)
	return cleaned, stats, nil
}
