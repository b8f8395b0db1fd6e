package defs

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TimePoint interface {
	GetTime() time.Time
}

// GlucoseReading is a single blood glucose sample in mmol/L.
type GlucoseReading struct {
	ID   *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Time time.Time           `bson:"time" json:"time"`
	Mmol float64             `bson:"mmol" json:"mmol"`
}

func (gr *GlucoseReading) GetTime() time.Time {
	return gr.Time
}

type DeliveryReason int

const (
	Bolus DeliveryReason = iota
	Basal
)

func (dr DeliveryReason) String() string {
	return [...]string{"bolus", "basal"}[dr]
}

type Insulin struct {
	ID     *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Time   time.Time           `bson:"time" json:"time"`
	Reason string              `bson:"reason" json:"reason"`
	Units  float64             `bson:"units" json:"units"`
}

func (in *Insulin) GetTime() time.Time {
	return in.Time
}

type Carb struct {
	ID    *primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Time  time.Time           `bson:"time" json:"time"`
	Grams float64             `bson:"grams" json:"grams"`
}

func (c *Carb) GetTime() time.Time {
	return c.Time
}
