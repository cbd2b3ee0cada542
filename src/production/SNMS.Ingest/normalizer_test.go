package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"
)

type fakeIngestTx struct {
	files      []snmsmodels.BinFile
	snapshot   *snmsmodels.SnapshotUpdate
	sensorID   int64
	committed  bool
	rolledBack bool
}

func (tx *fakeIngestTx) StoreFile(_ context.Context, file snmsmodels.BinFile) error {
	tx.files = append(tx.files, file)
	return nil
}

func (tx *fakeIngestTx) UpdateSnapshot(_ context.Context, sensorID int64, snap snmsmodels.SnapshotUpdate) error {
	tx.sensorID = sensorID
	tx.snapshot = &snap
	return nil
}

func (tx *fakeIngestTx) Commit() error   { tx.committed = true; return nil }
func (tx *fakeIngestTx) Rollback() error { tx.rolledBack = true; return nil }

type fakeSensorRepo struct {
	interfaces.SensorRepository
	sensor *snmsmodels.Sensor
	tx     *fakeIngestTx
	begun  bool
}

func (f *fakeSensorRepo) GetByUID(_ context.Context, uid string) (*snmsmodels.Sensor, error) {
	if f.sensor != nil && f.sensor.UID == uid {
		return f.sensor, nil
	}
	return nil, nil
}

func (f *fakeSensorRepo) BeginIngest(_ context.Context) (interfaces.IngestTx, error) {
	f.begun = true
	return f.tx, nil
}

type fakeTypeRegistry struct {
	types map[string]snmsmodels.SensorType
}

func (f *fakeTypeRegistry) Get(_ context.Context, name string) (*snmsmodels.SensorType, error) {
	t, ok := f.types[name]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTypeRegistry) All(_ context.Context) (map[string]snmsmodels.SensorType, error) {
	return f.types, nil
}

type fakeSeriesRepo struct {
	interfaces.SeriesRepository
	fields map[string]interface{}
	ts     time.Time
	calls  int
}

func (f *fakeSeriesRepo) AddPoint(_ context.Context, _ *snmsmodels.Sensor, fields map[string]interface{}, ts time.Time) error {
	f.fields = fields
	f.ts = ts
	f.calls++
	return nil
}

type evaluatorCall struct {
	values snmsmodels.ValueMap
	signal snmsmodels.AlertSignal
}

type fakeEvaluator struct {
	calls []evaluatorCall
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *snmsmodels.Sensor, values snmsmodels.ValueMap, signal snmsmodels.AlertSignal) {
	f.calls = append(f.calls, evaluatorCall{values: values, signal: signal})
}

type fakePublisher struct {
	topics   []string
	payloads []interface{}
}

func (f *fakePublisher) PublishJSON(topic string, payload interface{}) error {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

type normalizerFixture struct {
	service   *Service
	sensors   *fakeSensorRepo
	tx        *fakeIngestTx
	series    *fakeSeriesRepo
	evaluator *fakeEvaluator
	publisher *fakePublisher
	now       time.Time
}

func newFixture(sensor *snmsmodels.Sensor, sensorType snmsmodels.SensorType) *normalizerFixture {
	f := &normalizerFixture{
		tx:        &fakeIngestTx{},
		series:    &fakeSeriesRepo{},
		evaluator: &fakeEvaluator{},
		publisher: &fakePublisher{},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.sensors = &fakeSensorRepo{sensor: sensor, tx: f.tx}

	registry := &fakeTypeRegistry{types: map[string]snmsmodels.SensorType{
		sensorType.Name: sensorType,
	}}

	f.service = NewService(f.sensors, registry, f.series, f.evaluator, f.publisher, logger.GetGlobalLogger())
	f.service.now = func() time.Time { return f.now }
	return f
}

func weatherType() snmsmodels.SensorType {
	return snmsmodels.SensorType{
		Name: "weather",
		Fields: map[string]snmsmodels.FieldSpec{
			"temperature": {Type: snmsmodels.FieldNumeric},
			"humidity":    {Type: snmsmodels.FieldNumeric},
			"battery":     {Type: snmsmodels.FieldNumeric, Meta: true},
			"snapshot":    {Type: snmsmodels.FieldFile},
			"lat":         {Type: snmsmodels.FieldLatitude},
			"long":        {Type: snmsmodels.FieldLongitude},
		},
	}
}

func weatherSensor() *snmsmodels.Sensor {
	return &snmsmodels.Sensor{ID: 7, UID: "s-abc", Type: "weather", CompanyID: 1, CompanyUID: "c-xyz"}
}

func num(v float64) snmsmodels.RawField {
	return snmsmodels.RawField{Number: &v}
}

func TestPostSensorValuesOutsideWindowIsNoOp(t *testing.T) {
	sensor := weatherSensor()
	sensor.TimeStart = tod(14, 0, 0)
	sensor.TimeEnd = tod(18, 0, 0)
	f := newFixture(sensor, weatherType())

	configPending, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{"temperature": num(21.5)}},
		Options{})

	require.NoError(t, err)
	assert.False(t, configPending)
	assert.False(t, f.sensors.begun)
	assert.Zero(t, f.series.calls)
	assert.Empty(t, f.evaluator.calls)
	assert.Empty(t, f.publisher.topics)
}

func TestPostSensorValuesHappyPath(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	configPending, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{
			"temperature": num(21.5),
			"humidity":    num(60),
			"ignored":     num(1),
		}},
		Options{IP: "10.0.0.5"})

	require.NoError(t, err)
	assert.False(t, configPending)
	assert.True(t, f.tx.committed)
	assert.False(t, f.tx.rolledBack)

	require.NotNil(t, f.tx.snapshot)
	assert.Equal(t, int64(7), f.tx.sensorID)
	assert.Equal(t, "10.0.0.5", f.tx.snapshot.IP)
	assert.Equal(t, f.now, f.tx.snapshot.LastUpdate)
	assert.Equal(t, map[string]interface{}{"temperature": 21.5, "humidity": 60.0},
		f.tx.snapshot.Value.Raw())

	assert.Equal(t, 1, f.series.calls)
	assert.Equal(t, map[string]interface{}{"temperature": 21.5, "humidity": 60.0}, f.series.fields)
	assert.Equal(t, f.now, f.series.ts)

	require.Len(t, f.evaluator.calls, 1)
	assert.False(t, f.evaluator.calls[0].signal.Backup)
	assert.Equal(t, 21.5, f.evaluator.calls[0].values["temperature"].Number)
}

func TestPostSensorValuesConfigPending(t *testing.T) {
	sensor := weatherSensor()
	updated := time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	sensor.ConfigUpdated = &updated
	f := newFixture(sensor, weatherType())

	configPending, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{"temperature": num(1)}},
		Options{})

	require.NoError(t, err)
	assert.True(t, configPending)
}

func TestPostSensorValuesMetaFieldsStayOutOfSeries(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{
			"temperature": num(20),
			"battery":     num(87),
		}},
		Options{})

	require.NoError(t, err)
	// Meta fields stay on the snapshot but never reach the series store.
	assert.Contains(t, f.tx.snapshot.Value, "battery")
	assert.NotContains(t, f.series.fields, "battery")
	assert.Contains(t, f.series.fields, "temperature")
}

func TestPostSensorValuesStoresFiles(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{
			"temperature": num(20),
			"snapshot": {File: &snmsmodels.FileUpload{
				Filename:    "shot.jpg",
				ContentType: "image/jpeg",
				Data:        []byte{0xff, 0xd8},
			}},
		}},
		Options{})

	require.NoError(t, err)
	require.Len(t, f.tx.files, 1)
	stored := f.tx.files[0]
	assert.Equal(t, int64(7), stored.SensorID)
	assert.NotEmpty(t, stored.UID)
	assert.Equal(t, "shot.jpg", stored.Meta["filename"])

	// The value map references the stored file by its generated id.
	assert.Equal(t, stored.UID, f.tx.snapshot.Value["snapshot"].FileID)
	assert.Equal(t, stored.UID, f.series.fields["snapshot"])
}

func TestPostSensorValuesEmptyFileRemoved(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{
			"temperature": num(20),
			"snapshot":    {File: &snmsmodels.FileUpload{Filename: "empty.jpg"}},
		}},
		Options{})

	require.NoError(t, err)
	assert.Empty(t, f.tx.files)
	assert.NotContains(t, f.tx.snapshot.Value, "snapshot")
	assert.NotContains(t, f.series.fields, "snapshot")
}

func TestPostSensorValuesPromotesCoordinates(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{
			"lat":  num(48.1374),
			"long": num(11.5755),
		}},
		Options{})

	require.NoError(t, err)
	require.NotNil(t, f.tx.snapshot.LocationLat)
	require.NotNil(t, f.tx.snapshot.LocationLong)
	assert.Equal(t, 48.1374, *f.tx.snapshot.LocationLat)
	assert.Equal(t, 11.5755, *f.tx.snapshot.LocationLong)

	// Coordinates stay in the value map as well.
	assert.Contains(t, f.tx.snapshot.Value, "lat")
	assert.Contains(t, f.tx.snapshot.Value, "long")
}

func TestPostSensorValuesBackupSignal(t *testing.T) {
	sensor := weatherSensor()
	sensor.IsInactive = true
	lastUpdate := time.Date(2025, 6, 1, 11, 55, 0, 0, time.UTC)
	sensor.LastUpdate = &lastUpdate
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{"temperature": num(20)}},
		Options{})

	require.NoError(t, err)
	require.Len(t, f.evaluator.calls, 2)

	backup := f.evaluator.calls[0]
	assert.True(t, backup.signal.Backup)
	assert.InDelta(t, 300, backup.signal.Seconds, 0.001)
	assert.Nil(t, backup.values)

	assert.False(t, f.evaluator.calls[1].signal.Backup)
	assert.Contains(t, f.evaluator.calls[1].values, "temperature")
}

func TestPostSensorValuesClientTimestamp(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{
			Fields: map[string]snmsmodels.RawField{"temperature": num(20)},
			Time:   "2025-06-01T09:30:00",
		},
		Options{})

	require.NoError(t, err)
	expected := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, expected, f.tx.snapshot.LastUpdate)
	assert.Equal(t, expected, f.series.ts)
}

func TestPostSensorValuesPublishesMirror(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{"temperature": num(20)}},
		Options{})

	require.NoError(t, err)
	require.Len(t, f.publisher.topics, 1)
	assert.Equal(t, "sensors/s-abc/values", f.publisher.topics[0])

	payload, ok := f.publisher.payloads[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, payload["fromServer"])
	assert.Equal(t, 20.0, payload["temperature"])
	assert.NotEmpty(t, payload["time"])
}

func TestPostSensorValuesMQTTSourceNotMirrored(t *testing.T) {
	sensor := weatherSensor()
	f := newFixture(sensor, weatherType())

	_, err := f.service.PostSensorValues(context.Background(), sensor,
		snmsmodels.RawSubmission{Fields: map[string]snmsmodels.RawField{"temperature": num(20)}},
		Options{FromMQTT: true})

	require.NoError(t, err)
	assert.Empty(t, f.publisher.topics)
}

func TestPostSensorValueByUIDUnknownSensor(t *testing.T) {
	f := newFixture(weatherSensor(), weatherType())

	_, err := f.service.PostSensorValueByUID(context.Background(), "missing",
		snmsmodels.RawSubmission{}, Options{})

	assert.ErrorIs(t, err, ErrSensorNotFound)
}
