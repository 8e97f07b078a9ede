package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/passbi/od_dashboard/internal/models"
)

// Column names of an OD table. The Portuguese headers are the canonical ones.
var (
	originColumns      = []string{"origem", "origin"}
	destinationColumns = []string{"destino", "destination"}
	volumeColumns      = []string{"volume", "trips"}
	modeColumns        = []string{"modo", "mode"}
)

// ParseODFile parses an OD table CSV file
func ParseODFile(filePath string) ([]models.ODRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseODTable(file)
}

// ParseODTable parses OD rows from a CSV reader.
// Rows are returned in file order; malformed rows are skipped with a warning.
func ParseODTable(reader io.Reader) ([]models.ODRecord, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colMap := makeColumnMap(header)
	for _, required := range [][]string{originColumns, destinationColumns, volumeColumns} {
		if _, ok := findColumn(colMap, required); !ok {
			return nil, fmt.Errorf("missing required column %q", required[0])
		}
	}

	var records []models.ODRecord
	line := 1

	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Printf("Warning: skipping malformed OD row at line %d: %v", line, err)
			continue
		}

		originStr := getField(row, colMap, originColumns)
		destStr := getField(row, colMap, destinationColumns)
		volumeStr := getField(row, colMap, volumeColumns)

		if originStr == "" || destStr == "" || volumeStr == "" {
			log.Printf("Warning: skipping OD row with missing fields at line %d", line)
			continue
		}

		origin, err := parseZoneID(originStr)
		if err != nil {
			log.Printf("Warning: invalid origin at line %d: %v", line, err)
			continue
		}

		destination, err := parseZoneID(destStr)
		if err != nil {
			log.Printf("Warning: invalid destination at line %d: %v", line, err)
			continue
		}

		volume, err := strconv.ParseFloat(volumeStr, 64)
		if err != nil || math.IsNaN(volume) || math.IsInf(volume, 0) {
			log.Printf("Warning: invalid volume at line %d: %q", line, volumeStr)
			continue
		}
		if volume < 0 {
			log.Printf("Warning: negative volume at line %d: %v", line, volume)
			continue
		}

		record := models.ODRecord{
			Origin:      origin,
			Destination: destination,
			Volume:      volume,
		}
		if mode := getField(row, colMap, modeColumns); mode != "" {
			record.Mode = InferMode(mode)
		}

		records = append(records, record)
	}

	return records, nil
}

// parseZoneID accepts "12" and integral floats such as "12.0"
func parseZoneID(s string) (models.ZoneID, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.ZoneID(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("zone id %q is not an integer", s)
	}
	id, ok := models.ZoneIDFromFloat(f)
	if !ok {
		return 0, fmt.Errorf("zone id %q is not an int64 integer", s)
	}
	return id, nil
}

// Helper functions

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		// strip a UTF-8 BOM left by spreadsheet exports
		name := strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
		colMap[strings.ToLower(name)] = i
	}
	return colMap
}

func findColumn(colMap map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := colMap[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func getField(record []string, colMap map[string]int, names []string) string {
	if idx, ok := findColumn(colMap, names); ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
