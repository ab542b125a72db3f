// Package dataset reads episode result files written by the ingestion step
// and discovers the episodes of a run.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cdmetadl/cdscore/internal/models"
)

// ReadLabels reads the true labels of one episode. Values may be spread over
// any number of lines; every value must be a non-negative integer, written
// either plainly ("3") or as an integral float ("3.000000000000000000e+00").
func ReadLabels(path string) (models.LabelArray, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	var labels models.LabelArray
	for i, row := range rows {
		for _, v := range row {
			if v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
				return nil, parseError(path, fmt.Errorf("line %d: %v is not a class index", i+1, v))
			}
			labels = append(labels, int(v))
		}
	}
	if len(labels) == 0 {
		return nil, parseError(path, errors.New("no labels"))
	}
	return labels, nil
}

// ReadPredictions reads a prediction matrix with one example per line. Every
// line must have the same number of columns.
func ReadPredictions(path string) (models.PredictionMatrix, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, parseError(path, errors.New("no predictions"))
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, parseError(path, fmt.Errorf("row %d has %d columns, expected %d", i+1, len(row), width))
		}
	}
	return models.PredictionMatrix(rows), nil
}

// readRows parses a numeric text file. Files ending in .csv are read as
// comma separated values; anything else is split on whitespace with '#'
// starting a comment. Blank lines are skipped.
func readRows(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.ResourceError{Op: "read results", Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck

	var records [][]string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err = csvRecords(f)
	} else {
		records, err = textRecords(f)
	}
	if err != nil {
		return nil, parseError(path, err)
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, parseError(path, fmt.Errorf("line %d column %d: %w", i+1, j+1, err))
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func csvRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func textRecords(r io.Reader) ([][]string, error) {
	var records [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		records = append(records, fields)
	}
	return records, scanner.Err()
}

func parseError(path string, err error) error {
	return &models.ResourceError{Op: "parse results", Path: path, Err: err}
}
