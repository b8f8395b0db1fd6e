package healthkit

import (
	"strings"
	"testing"
	"time"

	"glyko/diary/defs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <ExportDate value="2024-03-02 10:00:00 +0000"/>
 <Record type="HKQuantityTypeIdentifierBloodGlucose" sourceName="cgm" startDate="2024-03-01 08:05:00 +0000" endDate="2024-03-01 08:05:00 +0000" value="5.4"/>
 <Record type="HKQuantityTypeIdentifierBloodGlucose" sourceName="cgm" startDate="2024-03-01 08:00:00 +0000" endDate="2024-03-01 08:00:00 +0000" value="6.1"/>
 <Record type="HKQuantityTypeIdentifierDietaryCarbohydrates" sourceName="app" startDate="2024-03-01 12:30:00 +0000" endDate="2024-03-01 12:30:00 +0000" value="45"/>
 <Record type="HKQuantityTypeIdentifierInsulinDelivery" sourceName="pen" startDate="2024-03-01 22:00:00 +0000" endDate="2024-03-01 22:00:00 +0000" value="24">
  <MetadataEntry key="HKInsulinDeliveryReason" value="1"/>
 </Record>
 <Record type="HKQuantityTypeIdentifierInsulinDelivery" sourceName="pen" startDate="2024-03-01 12:35:00 +0000" endDate="2024-03-01 12:35:00 +0000" value="6">
  <MetadataEntry key="HKWasUserEntered" value="1"/>
 </Record>
 <Record type="HKQuantityTypeIdentifierBloodGlucose" sourceName="cgm" startDate="not-a-date" endDate="" value="5.0"/>
 <Record type="HKQuantityTypeIdentifierBloodGlucose" sourceName="cgm" startDate="2024-03-01 09:00:00 +0000" endDate="" value="high"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="watch" startDate="2024-03-01 09:00:00 +0000" endDate="" value="100"/>
</HealthData>`

type HealthkitTestSuite struct {
	suite.Suite
	parser *Parser
}

func TestHealthkitTestSuite(t *testing.T) {
	suite.Run(t, new(HealthkitTestSuite))
}

func (suite *HealthkitTestSuite) SetupSuite() {
	suite.parser = &Parser{Logger: zap.NewExample()}
}

func (suite *HealthkitTestSuite) TestParse() {
	exp, err := suite.parser.Parse(strings.NewReader(sampleExport))
	assert.NoError(suite.T(), err)

	assert.Len(suite.T(), exp.Glucose, 2)
	assert.Len(suite.T(), exp.Insulin, 2)
	assert.Len(suite.T(), exp.Carbs, 1)
	assert.Equal(suite.T(), 2, exp.Skipped, "malformed records are skipped, not fatal")
}

func (suite *HealthkitTestSuite) TestParseSortsByTime() {
	exp, err := suite.parser.Parse(strings.NewReader(sampleExport))
	assert.NoError(suite.T(), err)

	// Input had 08:05 before 08:00; parsing sorts once at load time.
	first := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	assert.True(suite.T(), exp.Glucose[0].Time.Equal(first))
	assert.Equal(suite.T(), 6.1, exp.Glucose[0].Mmol)
	assert.True(suite.T(), exp.Glucose[1].Time.After(exp.Glucose[0].Time))
}

func (suite *HealthkitTestSuite) TestParseDeliveryReason() {
	exp, err := suite.parser.Parse(strings.NewReader(sampleExport))
	assert.NoError(suite.T(), err)

	// Sorted ascending: the 12:35 bolus comes before the 22:00 basal.
	assert.Equal(suite.T(), defs.Bolus.String(), exp.Insulin[0].Reason,
		"missing delivery-reason metadata defaults to bolus")
	assert.Equal(suite.T(), 6.0, exp.Insulin[0].Units)

	assert.Equal(suite.T(), defs.Basal.String(), exp.Insulin[1].Reason)
	assert.Equal(suite.T(), 24.0, exp.Insulin[1].Units)
}

func (suite *HealthkitTestSuite) TestParseEmpty() {
	exp, err := suite.parser.Parse(strings.NewReader(`<HealthData></HealthData>`))
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), exp.Glucose)
	assert.Empty(suite.T(), exp.Insulin)
	assert.Empty(suite.T(), exp.Carbs)
	assert.Zero(suite.T(), exp.Skipped)
}

func (suite *HealthkitTestSuite) TestParseMalformedXML() {
	_, err := suite.parser.Parse(strings.NewReader(`<HealthData><Record`))
	assert.Error(suite.T(), err)
}
