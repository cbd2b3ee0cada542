package snmsmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventLog is one audit-trail entry (sensor added, deleted, alert fired).
// Stored in Mongo, insert-only, best effort.
type EventLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CompanyUID string             `bson:"company_uid,omitempty" json:"company_uid,omitempty"`
	SensorUID  string             `bson:"sensor_uid,omitempty" json:"sensor_uid,omitempty"`
	Log        string             `bson:"log" json:"log"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
