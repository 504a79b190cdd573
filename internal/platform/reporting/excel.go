// Package reporting renders patient workbooks for clinicians who review
// results outside the API.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/labrec/labrec/internal/domain/patient"
	"github.com/labrec/labrec/internal/domain/ranges"
	"github.com/labrec/labrec/internal/domain/result"
)

// PatientSource supplies the patient record. *patient.Service satisfies it.
type PatientSource interface {
	Get(ctx context.Context, id string) (*patient.Patient, error)
}

// ResultSource supplies classified results. *result.Service satisfies it.
type ResultSource interface {
	Classified(ctx context.Context, patientID string) ([]*result.ClassifiedResult, error)
}

// Generator builds Excel reports.
type Generator struct {
	patients PatientSource
	results  ResultSource
}

func NewGenerator(patients PatientSource, results ResultSource) *Generator {
	return &Generator{patients: patients, results: results}
}

// statusLabel renders a status for clinicians. Undefined results are not an
// abnormality, they are a catalog gap.
func statusLabel(s ranges.Status) string {
	if s == ranges.StatusUndefined {
		return "needs configuration"
	}
	return string(s)
}

// Generate builds a two-sheet workbook: a summary with patient details and
// status counts, and the full classified result listing.
func (g *Generator) Generate(ctx context.Context, patientID string) (*xlsx.File, error) {
	p, err := g.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	classified, err := g.results.Classified(ctx, patientID)
	if err != nil {
		return nil, err
	}

	file := xlsx.NewFile()
	if err := g.addSummarySheet(file, p, classified); err != nil {
		return nil, err
	}
	if err := g.addResultsSheet(file, classified); err != nil {
		return nil, err
	}
	return file, nil
}

func (g *Generator) addSummarySheet(file *xlsx.File, p *patient.Patient, classified []*result.ClassifiedResult) error {
	sheet, err := file.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}

	addPair := func(label, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(label)
		row.AddCell().SetString(value)
	}

	addPair("Patient Report", time.Now().Format("2006-01-02"))
	sheet.AddRow()
	addPair("Patient ID", p.ID)
	addPair("Name", fmt.Sprintf("%s %s", p.FirstName, p.LastName))
	if p.DateOfBirth != nil {
		addPair("Date of Birth", p.DateOfBirth.Format("2006-01-02"))
	}
	if age := p.Age(time.Now()); age != nil {
		addPair("Age", fmt.Sprintf("%d", *age))
	}
	if p.Gender != nil {
		addPair("Gender", *p.Gender)
	}

	counts := map[ranges.Status]int{}
	for _, cr := range classified {
		counts[cr.Status]++
	}
	sheet.AddRow()
	addPair("Total Results", fmt.Sprintf("%d", len(classified)))
	for _, s := range []ranges.Status{
		ranges.StatusNormal, ranges.StatusLow, ranges.StatusHigh,
		ranges.StatusCriticalLow, ranges.StatusCriticalHigh, ranges.StatusUndefined,
	} {
		if counts[s] > 0 {
			addPair(statusLabel(s), fmt.Sprintf("%d", counts[s]))
		}
	}

	alerts := counts[ranges.StatusLow] + counts[ranges.StatusHigh] +
		counts[ranges.StatusCriticalLow] + counts[ranges.StatusCriticalHigh]
	sheet.AddRow()
	addPair("Alerts", fmt.Sprintf("%d", alerts))
	return nil
}

func (g *Generator) addResultsSheet(file *xlsx.File, classified []*result.ClassifiedResult) error {
	sheet, err := file.AddSheet("Test Results")
	if err != nil {
		return fmt.Errorf("add results sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range []string{"Test", "Value", "Unit", "Date", "Status", "Normal Range", "Range Source", "Technician", "Notes"} {
		header.AddCell().SetString(h)
	}

	for _, cr := range classified {
		row := sheet.AddRow()
		row.AddCell().SetString(cr.TestName)
		row.AddCell().SetFloat(cr.Value)
		row.AddCell().SetString(deref(cr.Unit))
		row.AddCell().SetString(cr.TestDate)
		row.AddCell().SetString(statusLabel(cr.Status))
		row.AddCell().SetString(formatBand(cr.Range))
		row.AddCell().SetString(cr.Range.Source)
		row.AddCell().SetString(deref(cr.LabTechnician))
		row.AddCell().SetString(deref(cr.Notes))
	}
	return nil
}

func formatBand(res ranges.Resolution) string {
	if res.NormalMin == nil || res.NormalMax == nil {
		return ""
	}
	return fmt.Sprintf("%g - %g", *res.NormalMin, *res.NormalMax)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
