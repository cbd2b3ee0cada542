package interfaces

// Publisher publishes JSON payloads to named topics for downstream
// consumers (devices, dashboards). Failures are logged by callers, never
// propagated: publishing is fire-and-forget.
type Publisher interface {
	PublishJSON(topic string, payload interface{}) error
}
