package snmsmodels

// FieldKind enumerates the value kinds a sensor type schema can declare.
type FieldKind string

const (
	FieldNumeric   FieldKind = "numeric"
	FieldFile      FieldKind = "file"
	FieldLatitude  FieldKind = "latitude"
	FieldLongitude FieldKind = "longitude"
)

// FieldSpec describes one declared field of a sensor type.
type FieldSpec struct {
	Type FieldKind `json:"type"`
	// Meta fields are kept on the sensor's live snapshot but never written
	// to the time-series store.
	Meta    bool     `json:"meta,omitempty"`
	Default *float64 `json:"default,omitempty"`
}

// ConfigFieldSpec describes one configuration field of a sensor type.
type ConfigFieldSpec struct {
	Name    string      `json:"name"`
	Type    string      `json:"type,omitempty"`
	Default interface{} `json:"default,omitempty"`
}

// SensorType is the registry entry for one sensor type: its value field
// schema and its configuration field schema.
type SensorType struct {
	Name         string                     `json:"name"`
	Title        string                     `json:"title,omitempty"`
	Fields       map[string]FieldSpec       `json:"fields"`
	ConfigFields map[string]ConfigFieldSpec `json:"config_fields,omitempty"`
	CreatedAt    string                     `json:"created_at,omitempty"`
}

// ConfigDefaults returns the default configuration map for the type: every
// config field that declares a default, keyed by field name.
func (t *SensorType) ConfigDefaults() map[string]interface{} {
	defaults := make(map[string]interface{})
	for _, field := range t.ConfigFields {
		if field.Default != nil {
			defaults[field.Name] = field.Default
		}
	}
	return defaults
}
