package snmsmodels

import "time"

// Company roles, ordered by privilege.
const (
	RoleAdmin = "admin"
	RoleWrite = "write"
	RoleRead  = "read"
)

// Sensor represents one managed sensor belonging to a company.
type Sensor struct {
	ID          int64  `json:"-" db:"id"`
	UID         string `json:"uid" db:"uid"`
	HID         string `json:"hid" db:"hid"`
	Name        string `json:"name" db:"name"`
	Type        string `json:"type" db:"type"`
	Description string `json:"description,omitempty" db:"description"`

	CompanyID  int64  `json:"-" db:"company_id"`
	CompanyUID string `json:"company_id,omitempty" db:"company_uid"`

	// Key is the write credential devices submit values with. Stripped from
	// representations returned to read-only roles.
	Key string `json:"key,omitempty" db:"key"`

	// Value is the live-state snapshot of the last accepted reading,
	// including meta fields.
	Value  map[string]interface{} `json:"value" db:"value"`
	Config map[string]interface{} `json:"config" db:"config"`

	// ConfigUpdated marks a pending configuration push; cleared when the
	// device acknowledges.
	ConfigUpdated *time.Time `json:"config_updated,omitempty" db:"config_updated"`

	LastUpdate *time.Time `json:"last_update,omitempty" db:"last_update"`
	IsDown     bool       `json:"is_down" db:"is_down"`
	IsInactive bool       `json:"is_inactive" db:"is_inactive"`
	IP         string     `json:"ip,omitempty" db:"ip"`

	LocationLat  *float64 `json:"location_lat,omitempty" db:"location_lat"`
	LocationLong *float64 `json:"location_long,omitempty" db:"location_long"`

	// Active-hours window (time of day, may wrap midnight). Readings
	// received outside the window are silently discarded.
	TimeStart *TimeOfDay `json:"time_start,omitempty" db:"time_start"`
	TimeEnd   *TimeOfDay `json:"time_end,omitempty" db:"time_end"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Deleted   bool      `json:"-" db:"deleted"`
}

// SnapshotUpdate is the atomic live-state update applied to a sensor row
// when a reading is accepted.
type SnapshotUpdate struct {
	Value        ValueMap
	LastUpdate   time.Time
	IP           string
	LocationLat  *float64
	LocationLong *float64
}

// BinFile is a binary blob submitted through a file-type field, stored
// externally and referenced from readings by UID.
type BinFile struct {
	UID       string                 `json:"uid" db:"uid"`
	SensorID  int64                  `json:"-" db:"sensor_id"`
	Data      []byte                 `json:"-" db:"file"`
	Meta      map[string]interface{} `json:"meta" db:"meta_info"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// SensorUpdate carries the mutable fields of a sensor detail update.
type SensorUpdate struct {
	Name         string     `json:"name"`
	HID          string     `json:"hid"`
	LocationLat  *float64   `json:"location_lat"`
	LocationLong *float64   `json:"location_long"`
	TimeStart    *TimeOfDay `json:"time_start"`
	TimeEnd      *TimeOfDay `json:"time_end"`
}
