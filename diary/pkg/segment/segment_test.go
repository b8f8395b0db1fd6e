package segment

import (
	"math/rand"
	"testing"
	"time"

	"glyko/diary/defs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SegmentTestSuite struct {
	suite.Suite
	rng Range
}

func TestSegmentTestSuite(t *testing.T) {
	suite.Run(t, new(SegmentTestSuite))
}

func (suite *SegmentTestSuite) SetupSuite() {
	rng, err := NewRange(defs.GlucoseConfig{Low: 4, High: 10})
	assert.NoError(suite.T(), err)
	suite.rng = rng
}

func (suite *SegmentTestSuite) TestNewRangeInvalid() {
	_, err := NewRange(defs.GlucoseConfig{Low: 10, High: 4})
	assert.Error(suite.T(), err, "inverted range should be rejected")

	_, err = NewRange(defs.GlucoseConfig{Low: 4, High: 4})
	assert.Error(suite.T(), err, "empty range should be rejected")
}

func (suite *SegmentTestSuite) TestNewRangePolicy() {
	rng, err := NewRange(defs.GlucoseConfig{Low: 4, High: 10, Policy: "two_zone"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), TwoZone, rng.Policy)
	assert.Equal(suite.T(), Out, rng.Classify(3.9))

	rng, err = NewRange(defs.GlucoseConfig{Low: 4, High: 10, Policy: "three_zone"})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), ThreeZone, rng.Policy)
	assert.Equal(suite.T(), Below, rng.Classify(3.9))

	_, err = NewRange(defs.GlucoseConfig{Low: 4, High: 10, Policy: "five_zone"})
	assert.Error(suite.T(), err, "unknown policies should be rejected")
}

func (suite *SegmentTestSuite) TestClassify() {
	assert.Equal(suite.T(), Below, suite.rng.Classify(3.9))
	assert.Equal(suite.T(), InRange, suite.rng.Classify(4))
	assert.Equal(suite.T(), InRange, suite.rng.Classify(7))
	assert.Equal(suite.T(), InRange, suite.rng.Classify(10))
	assert.Equal(suite.T(), Above, suite.rng.Classify(10.1))
}

func (suite *SegmentTestSuite) TestClassifyTwoZone() {
	rng := suite.rng
	rng.Policy = TwoZone

	assert.Equal(suite.T(), Out, rng.Classify(3.9))
	assert.Equal(suite.T(), InRange, rng.Classify(4))
	assert.Equal(suite.T(), Out, rng.Classify(10.1))
}

func (suite *SegmentTestSuite) TestBuildEmpty() {
	assert.Empty(suite.T(), suite.rng.Build(nil))
}

func (suite *SegmentTestSuite) TestBuildSinglePoint() {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	segments := suite.rng.Build([]defs.GlucoseReading{{Time: t0, Mmol: 6.5}})

	assert.Len(suite.T(), segments, 1)
	assert.Equal(suite.T(), InRange, segments[0].Zone)
	assert.Equal(suite.T(), []Point{{Time: t0, Mmol: 6.5}}, segments[0].Points)
}

func (suite *SegmentTestSuite) TestBuildConstantAtBoundary() {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	readings := make([]defs.GlucoseReading, 5)
	for i := range readings {
		readings[i] = defs.GlucoseReading{
			Time: t0.Add(time.Duration(i*5) * time.Minute),
			Mmol: 4, // Exactly the lower boundary.
		}
	}

	segments := suite.rng.Build(readings)
	assert.Len(suite.T(), segments, 1, "boundary-equal values stay in range, no crossing")
	assert.Equal(suite.T(), InRange, segments[0].Zone)
	assert.Len(suite.T(), segments[0].Points, 5)
}

func (suite *SegmentTestSuite) TestBuildCrossings() {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	step := 10 * time.Minute
	readings := []defs.GlucoseReading{
		{Time: t0, Mmol: 3},
		{Time: t0.Add(step), Mmol: 5},
		{Time: t0.Add(2 * step), Mmol: 12},
		{Time: t0.Add(3 * step), Mmol: 7},
	}

	segments := suite.rng.Build(readings)
	assert.Len(suite.T(), segments, 4)

	zones := make([]Zone, len(segments))
	for i, seg := range segments {
		zones[i] = seg.Zone
	}
	assert.Equal(suite.T(), []Zone{Below, InRange, Above, InRange}, zones)

	// First crossing is halfway between 3 and 5 at the lower boundary.
	cross := segments[0].Points[len(segments[0].Points)-1]
	assert.Equal(suite.T(), Point{Time: t0.Add(5 * time.Minute), Mmol: 4}, cross)

	// Third crossing: (10-12)/(7-12) = 0.4 of the way from t2 to t3.
	cross = segments[2].Points[len(segments[2].Points)-1]
	assert.Equal(suite.T(), Point{Time: t0.Add(2*step + 4*time.Minute), Mmol: 10}, cross)

	// Consecutive segments share exactly the crossing point.
	for i := 1; i < len(segments); i++ {
		last := segments[i-1].Points[len(segments[i-1].Points)-1]
		assert.Equal(suite.T(), last, segments[i].Points[0], "segments should join at the crossing")
	}

	// The joined polyline spans exactly the input's time range.
	assert.Equal(suite.T(), t0, segments[0].Points[0].Time)
	lastSeg := segments[len(segments)-1]
	assert.Equal(suite.T(), t0.Add(3*step), lastSeg.Points[len(lastSeg.Points)-1].Time)
}

func (suite *SegmentTestSuite) TestBuildTwoZone() {
	rng := suite.rng
	rng.Policy = TwoZone

	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	step := 10 * time.Minute
	readings := []defs.GlucoseReading{
		{Time: t0, Mmol: 3},
		{Time: t0.Add(step), Mmol: 5},
		{Time: t0.Add(2 * step), Mmol: 12},
	}

	segments := rng.Build(readings)
	assert.Len(suite.T(), segments, 3)
	assert.Equal(suite.T(), Out, segments[0].Zone)
	assert.Equal(suite.T(), InRange, segments[1].Zone)
	assert.Equal(suite.T(), Out, segments[2].Zone)

	assert.Equal(suite.T(), 4.0, segments[0].Points[1].Mmol, "entering crossing sits on the lower boundary")
	assert.Equal(suite.T(), 10.0, segments[2].Points[0].Mmol, "leaving crossing sits on the upper boundary")
}

func (suite *SegmentTestSuite) TestCrossingDegenerate() {
	t0 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(10 * time.Minute)

	// Equal values cannot straddle a boundary; the guard falls back to
	// the midpoint instead of dividing by zero.
	pt := suite.rng.Crossing(t0, t1, 7, 7)
	assert.Equal(suite.T(), t0.Add(5*time.Minute), pt.Time)
	assert.Equal(suite.T(), suite.rng.High, pt.Mmol)
}

func (suite *SegmentTestSuite) TestSegmentCountMatchesTransitions() {
	t0 := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	readings := make([]defs.GlucoseReading, 200)
	for i := range readings {
		readings[i] = defs.GlucoseReading{
			Time: t0.Add(time.Duration(i*5) * time.Minute),
			Mmol: 2 + rand.Float64()*12,
		}
	}

	transitions := 0
	for i := 1; i < len(readings); i++ {
		if suite.rng.Classify(readings[i].Mmol) != suite.rng.Classify(readings[i-1].Mmol) {
			transitions++
		}
	}

	segments := suite.rng.Build(readings)
	assert.Len(suite.T(), segments, 1+transitions)

	// Interior points all classify into the segment's zone.
	for _, seg := range segments {
		for i, pt := range seg.Points {
			if i == 0 || i == len(seg.Points)-1 {
				continue
			}
			assert.Equal(suite.T(), seg.Zone, suite.rng.Classify(pt.Mmol))
		}
	}
}
