package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"cityprice/internal"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatParquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", value)
	}
}

// WriteFile writes records to path in the given format.
func WriteFile(path string, format Format, records []internal.CityRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	switch format {
	case FormatCSV, "":
		return Save(path, records)
	case FormatXLSX:
		return WriteXLSX(path, records)
	case FormatParquet:
		return WriteParquet(path, records)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func WriteXLSX(path string, records []internal.CityRecord) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range internal.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, rec := range records {
		for c, value := range rec.Row() {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// ReadXLSXTable reads the first sheet of a workbook as a Table.
func ReadXLSXTable(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, err
	}
	if len(rows) == 0 {
		return Table{}, nil
	}
	return Table{Header: rows[0], Rows: rows[1:]}, nil
}

// ReadAnyTable reads a CSV or xlsx file by extension.
func ReadAnyTable(path string) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSXTable(path)
	default:
		return ReadTable(path)
	}
}

type parquetRow struct {
	Date                     string   `parquet:"DATE"`
	ADCode                   string   `parquet:"ADCODE"`
	City                     string   `parquet:"CITY"`
	FixedBase                string   `parquet:"FixedBase"`
	HouseIDX                 *float64 `parquet:"HouseIDX,optional"`
	ResidentIDX              *float64 `parquet:"ResidentIDX,optional"`
	CommodityHouseIDX        *float64 `parquet:"CommodityHouseIDX,optional"`
	SecondHandIDX            *float64 `parquet:"SecondHandIDX,optional"`
	ResidentBelow90IDX       *float64 `parquet:"ResidentBelow90IDX,optional"`
	CommonResidentBelow90IDX *float64 `parquet:"CommonResidentBelow90IDX,optional"`
	CommodityBelow90IDX      *float64 `parquet:"CommodityBelow90IDX,optional"`
	Commodity144IDX          *float64 `parquet:"Commodity144IDX,optional"`
	CommodityAbove144IDX     *float64 `parquet:"CommodityAbove144IDX,optional"`
	SecondHandBelow90IDX     *float64 `parquet:"SecondHandBelow90IDX,optional"`
	SecondHand144IDX         *float64 `parquet:"SecondHand144IDX,optional"`
	SecondHandAbove144IDX    *float64 `parquet:"SecondHandAbove144IDX,optional"`
}

func toParquetRow(r internal.CityRecord) parquetRow {
	num := func(m internal.Metric) *float64 {
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Value(m)), 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return parquetRow{
		Date:                     r.Period.DateString(),
		ADCode:                   r.CityCode,
		City:                     r.CityName,
		FixedBase:                string(r.Basis),
		HouseIDX:                 num(internal.MetricHouse),
		ResidentIDX:              num(internal.MetricResident),
		CommodityHouseIDX:        num(internal.MetricCommodityHouse),
		SecondHandIDX:            num(internal.MetricSecondHand),
		ResidentBelow90IDX:       num(internal.MetricResidentBelow90),
		CommonResidentBelow90IDX: num(internal.MetricCommonResidentBelow90),
		CommodityBelow90IDX:      num(internal.MetricCommodityBelow90),
		Commodity144IDX:          num(internal.MetricCommodity144),
		CommodityAbove144IDX:     num(internal.MetricCommodityAbove144),
		SecondHandBelow90IDX:     num(internal.MetricSecondHandBelow90),
		SecondHand144IDX:         num(internal.MetricSecondHand144),
		SecondHandAbove144IDX:    num(internal.MetricSecondHandAbove144),
	}
}

// WriteParquet writes records with numeric metric columns; absent or
// non-numeric cells become nulls.
func WriteParquet(path string, records []internal.CityRecord) error {
	rows := make([]parquetRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toParquetRow(r))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}
