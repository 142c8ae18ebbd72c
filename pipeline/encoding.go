package pipeline

import (
	"fmt"
	"sort"
	"strconv"
)

// Schema describes how a raw customer table becomes a numeric training set.
type Schema struct {
	IDColumn      string `yaml:"id_column"`
	TargetColumn  string `yaml:"target_column"`
	PositiveLabel string `yaml:"positive_label"`
	NegativeLabel string `yaml:"negative_label"`
	// BinaryColumns are replaced in place by the code of their value among
	// the column's sorted distinct values.
	BinaryColumns []string `yaml:"binary_columns"`
	// CategoricalColumns are expanded into <column>_<category> indicators,
	// omitting the first sorted category.
	CategoricalColumns []string `yaml:"categorical_columns"`
	// FillZeroColumns are numeric columns where blanks mean zero.
	FillZeroColumns []string `yaml:"fill_zero_columns"`
}

// TelcoSchema is the schema of the telecom churn dataset.
func TelcoSchema() Schema {
	return Schema{
		IDColumn:      "customerID",
		TargetColumn:  "Churn",
		PositiveLabel: "Yes",
		NegativeLabel: "No",
		BinaryColumns: []string{"gender", "Partner", "Dependents", "PhoneService", "PaperlessBilling"},
		CategoricalColumns: []string{
			"MultipleLines", "InternetService", "OnlineSecurity", "OnlineBackup",
			"DeviceProtection", "TechSupport", "StreamingTV", "StreamingMovies",
			"Contract", "PaymentMethod",
		},
		FillZeroColumns: []string{"TotalCharges"},
	}
}

// Dataset is an encoded training matrix. Columns is the ordered feature
// column list every model trained on Features expects.
type Dataset struct {
	Columns  []string
	Features [][]float64
	Labels   []int
	// Categories holds the sorted categories seen per categorical column,
	// including the dropped reference category at index 0.
	Categories map[string][]string
}

// Positives counts rows labelled 1.
func (d *Dataset) Positives() int {
	var n int
	for _, l := range d.Labels {
		n += l
	}
	return n
}

// IndicatorName is the feature column name for one category of a
// categorical column.
func IndicatorName(column, category string) string {
	return column + "_" + category
}

// Encode turns a cleaned table into a Dataset. Passthrough columns keep
// their header order, followed by the indicator columns in schema order.
// Declared columns missing from the header are ignored.
func Encode(t *Table, schema Schema) (*Dataset, error) {
	target := t.Column(schema.TargetColumn)
	if target < 0 {
		return nil, fmt.Errorf("target column %q not found", schema.TargetColumn)
	}
	categorical := make(map[string]bool)
	for _, name := range schema.CategoricalColumns {
		categorical[name] = true
	}
	binary := make(map[string]bool)
	for _, name := range schema.BinaryColumns {
		binary[name] = true
	}

	type encoder struct {
		column int
		value  func(cell string) (float64, error)
	}
	var encoders []encoder
	var columns []string

	for idx, name := range t.Header {
		if name == schema.IDColumn || idx == target || categorical[name] {
			continue
		}
		idx, name := idx, name
		if binary[name] {
			codes := labelCodes(t, idx)
			encoders = append(encoders, encoder{column: idx, value: func(cell string) (float64, error) {
				return float64(codes[cell]), nil
			}})
		} else {
			encoders = append(encoders, encoder{column: idx, value: func(cell string) (float64, error) {
				v, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					return 0, fmt.Errorf("column %q is not numeric: %w", name, err)
				}
				return v, nil
			}})
		}
		columns = append(columns, name)
	}

	dataset := &Dataset{Categories: make(map[string][]string)}
	type indicator struct {
		column   int
		category string
	}
	var indicators []indicator
	for _, name := range schema.CategoricalColumns {
		idx := t.Column(name)
		if idx < 0 {
			continue
		}
		categories := distinctSorted(t, idx)
		dataset.Categories[name] = categories
		if len(categories) == 0 {
			continue
		}
		for _, category := range categories[1:] {
			indicators = append(indicators, indicator{column: idx, category: category})
			columns = append(columns, IndicatorName(name, category))
		}
	}

	dataset.Columns = columns
	dataset.Features = make([][]float64, len(t.Rows))
	dataset.Labels = make([]int, len(t.Rows))
	for r, row := range t.Rows {
		switch row[target] {
		case schema.PositiveLabel:
			dataset.Labels[r] = 1
		case schema.NegativeLabel:
			dataset.Labels[r] = 0
		default:
			return nil, fmt.Errorf("row %d: unknown target %q", r+1, row[target])
		}

		vector := make([]float64, 0, len(columns))
		for _, enc := range encoders {
			v, err := enc.value(row[enc.column])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", r+1, err)
			}
			vector = append(vector, v)
		}
		for _, ind := range indicators {
			if row[ind.column] == ind.category {
				vector = append(vector, 1)
			} else {
				vector = append(vector, 0)
			}
		}
		dataset.Features[r] = vector
	}
	return dataset, nil
}

func labelCodes(t *Table, column int) map[string]int {
	codes := make(map[string]int)
	for i, v := range distinctSorted(t, column) {
		codes[v] = i
	}
	return codes
}

func distinctSorted(t *Table, column int) []string {
	seen := make(map[string]bool)
	var values []string
	for _, row := range t.Rows {
		if !seen[row[column]] {
			seen[row[column]] = true
			values = append(values, row[column])
		}
	}
	sort.Strings(values)
	return values
}
