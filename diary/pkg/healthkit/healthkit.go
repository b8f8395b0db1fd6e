// Package healthkit parses Apple Health export files into glucose,
// insulin, and carbohydrate record sequences.
package healthkit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"glyko/diary/defs"

	"go.uber.org/zap"
)

const (
	glucoseType = "HKQuantityTypeIdentifierBloodGlucose"
	carbsType   = "HKQuantityTypeIdentifierDietaryCarbohydrates"
	insulinType = "HKQuantityTypeIdentifierInsulinDelivery"

	deliveryReasonKey = "HKInsulinDeliveryReason"
	basalReasonValue  = "1"

	dateLayout = "2006-01-02 15:04:05 -0700"
)

type record struct {
	Type      string          `xml:"type,attr"`
	StartDate string          `xml:"startDate,attr"`
	Value     string          `xml:"value,attr"`
	Metadata  []metadataEntry `xml:"MetadataEntry"`
}

type metadataEntry struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

// Export holds one parsed health export, each sequence sorted ascending
// by time. Records with unparseable values or dates are skipped and
// counted, never fatal.
type Export struct {
	Glucose []defs.GlucoseReading
	Insulin []defs.Insulin
	Carbs   []defs.Carb
	Skipped int
}

type Parser struct {
	Logger *zap.Logger
}

func (p *Parser) ParseFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open export: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse streams Record elements off the reader, one at a time, so a
// multi-gigabyte export never gets fully buffered.
func (p *Parser) Parse(r io.Reader) (*Export, error) {
	exp := &Export{}
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse export: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Record" {
			continue
		}

		var rec record
		if err := dec.DecodeElement(&rec, &se); err != nil {
			return nil, fmt.Errorf("unable to decode record: %w", err)
		}
		p.collect(exp, rec)
	}

	sortExport(exp)

	p.Logger.Debug("parsed health export",
		zap.Int("glucose", len(exp.Glucose)),
		zap.Int("insulin", len(exp.Insulin)),
		zap.Int("carbs", len(exp.Carbs)),
		zap.Int("skipped", exp.Skipped),
	)

	return exp, nil
}

func (p *Parser) collect(exp *Export, rec record) {
	switch rec.Type {
	case glucoseType, carbsType, insulinType:
	default:
		return
	}

	t, err := time.Parse(dateLayout, rec.StartDate)
	if err != nil {
		exp.Skipped++
		return
	}
	val, err := strconv.ParseFloat(rec.Value, 64)
	if err != nil {
		exp.Skipped++
		return
	}

	switch rec.Type {
	case glucoseType:
		exp.Glucose = append(exp.Glucose, defs.GlucoseReading{Time: t, Mmol: val})
	case carbsType:
		exp.Carbs = append(exp.Carbs, defs.Carb{Time: t, Grams: val})
	case insulinType:
		exp.Insulin = append(exp.Insulin, defs.Insulin{
			Time:   t,
			Units:  val,
			Reason: deliveryReason(rec.Metadata),
		})
	}
}

// deliveryReason classifies an insulin record from its metadata tags.
// Bolus is the default when no disambiguating entry is present.
func deliveryReason(entries []metadataEntry) string {
	for _, m := range entries {
		if m.Key == deliveryReasonKey && m.Value == basalReasonValue {
			return defs.Basal.String()
		}
	}
	return defs.Bolus.String()
}

// sortExport establishes the ordering invariant once at load time;
// downstream consumers never re-sort.
func sortExport(exp *Export) {
	sort.SliceStable(exp.Glucose, func(i, j int) bool {
		return exp.Glucose[i].Time.Before(exp.Glucose[j].Time)
	})
	sort.SliceStable(exp.Insulin, func(i, j int) bool {
		return exp.Insulin[i].Time.Before(exp.Insulin[j].Time)
	})
	sort.SliceStable(exp.Carbs, func(i, j int) bool {
		return exp.Carbs[i].Time.Before(exp.Carbs[j].Time)
	})
}
