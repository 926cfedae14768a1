// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package materialize

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

// Workbook file and sheet names.
const (
	PatentsWorkbook  = "patents.xlsx"
	MetadataWorkbook = "metadata.xlsx"
	PersonWorkbook   = "person.xlsx"

	patentsSheet  = "Patents"
	metadataSheet = "Metadata"
	personSheet   = "Person"
)

var (
	patentsHeader = []any{
		"Title", "Current Assignee", "Inventor", "Source Link", "Priority Date",
		"Publication Date", "Classification Codes", "Patent Number", "Country",
		"Topics", "Supporting Document",
	}
	metadataHeader = []any{"File Name", "Source", "Publication Date", "Authors", "Patent Number"}
	personHeader   = []any{"Patents"}
)

// WriteWorkbooks writes the patents, metadata and person workbooks for
// records into dir.
func WriteWorkbooks(dir string, records []types.PatentRecord) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}
	if err := writeSheet(filepath.Join(dir, PatentsWorkbook), patentsSheet, patentsHeader, PatentRows(records)); err != nil {
		return err
	}
	if err := writeSheet(filepath.Join(dir, MetadataWorkbook), metadataSheet, metadataHeader, MetadataRows(records)); err != nil {
		return err
	}
	return writeSheet(filepath.Join(dir, PersonWorkbook), personSheet, personHeader, PersonRows(records))
}

// PatentRows expands each record into max(len(assignees), len(inventors))
// rows, at least one. Assignee and inventor advance together; the other
// columns repeat on every row.
func PatentRows(records []types.PatentRecord) [][]any {
	var rows [][]any
	for _, r := range records {
		n := max(len(r.CurrentAssignee), len(r.Inventors), 1)
		for i := range n {
			rows = append(rows, []any{
				r.Title,
				at(r.CurrentAssignee, i),
				at(r.Inventors, i),
				r.Link,
				r.PriorityDate,
				r.PublicationDate,
				r.ClassificationCodes,
				r.PatentCode,
				r.Country,
				"",
				r.PathToPDFFile,
			})
		}
	}
	return rows
}

// MetadataRows returns one row per record.
func MetadataRows(records []types.PatentRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.PathToPDFFile,
			r.Link,
			r.PublicationDate,
			strings.Join(r.Inventors, ", "),
			r.PatentCode,
		})
	}
	return rows
}

// PersonRows returns one free-text row per record.
func PersonRows(records []types.PatentRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{PersonText(r)})
	}
	return rows
}

// PersonText is the searchable summary of a record: title, priority
// date, inventors, abstract and link separated by spaces.
func PersonText(r types.PatentRecord) string {
	return fmt.Sprintf("%s %s %s %s %s",
		r.Title, r.PriorityDate, strings.Join(r.Inventors, ", "), r.Abstract, r.Link)
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func writeSheet(path, sheet string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet %s: %w", sheet, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d of %s: %w", i+2, sheet, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
