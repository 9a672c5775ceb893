// Package testing provides test utilities for parcel.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/parcel"
)

// PutCall records one Put received by a MockProvider.
type PutCall struct {
	Key     string
	Data    []byte
	Options parcel.PutOptions
}

// MockProvider is an in-memory implementation of parcel.BucketProvider for testing.
type MockProvider struct {
	data     map[string][]byte
	puts     []PutCall
	presigns []string
	mu       sync.RWMutex

	// Injected failures, returned before any state changes.
	GetErr     error
	PutErr     error
	DeleteErr  error
	PresignErr error

	// URLFunc builds presigned URLs; defaults to "https://example.com/<key>".
	URLFunc func(key string, expiry time.Duration) string
}

// NewMockProvider creates a new in-memory provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		data: make(map[string][]byte),
	}
}

// Put stores a copy of data at key and records the call.
func (m *MockProvider) Put(_ context.Context, key string, data []byte, opts *parcel.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return m.PutErr
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[key] = stored

	call := PutCall{Key: key, Data: stored}
	if opts != nil {
		call.Options = *opts
	}
	m.puts = append(m.puts, call)
	return nil
}

// Get retrieves a copy of the bytes at key.
func (m *MockProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, parcel.ErrNotFound
	}

	// Return a copy to prevent mutation
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Delete removes the object at key. Missing keys are ignored.
func (m *MockProvider) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.data, key)
	return nil
}

// PresignGet returns a deterministic URL for key and records the call.
func (m *MockProvider) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PresignErr != nil {
		return "", m.PresignErr
	}
	m.presigns = append(m.presigns, key)
	if m.URLFunc != nil {
		return m.URLFunc(key, expiry), nil
	}
	return "https://example.com/" + key, nil
}

// Object returns the stored bytes at key without going through Get.
func (m *MockProvider) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[key]
	return data, ok
}

// Puts returns a copy of all recorded Put calls.
func (m *MockProvider) Puts() []PutCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]PutCall, len(m.puts))
	copy(result, m.puts)
	return result
}

// Presigns returns the keys passed to PresignGet, in order.
func (m *MockProvider) Presigns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, len(m.presigns))
	copy(result, m.presigns)
	return result
}

// Reset clears all data and recorded calls in the mock provider.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string][]byte)
	m.puts = nil
	m.presigns = nil
}

// Ensure MockProvider implements parcel.BucketProvider.
var _ parcel.BucketProvider = (*MockProvider)(nil)

// Event is one parcel event seen by a Recorder.
type Event struct {
	Signal capitan.Signal
	Fields []capitan.Field
}

// Key returns the event's object key, or "" when it carries none.
func (e Event) Key() string { return parcel.FieldKey.ExtractFromFields(e.Fields) }

// Path returns the fully qualified storage path.
func (e Event) Path() string { return parcel.FieldPath.ExtractFromFields(e.Fields) }

// Bucket returns the bucket of a publish event.
func (e Event) Bucket() string { return parcel.FieldBucket.ExtractFromFields(e.Fields) }

// Size returns the number of bytes written.
func (e Event) Size() int64 { return parcel.FieldSize.ExtractFromFields(e.Fields) }

// Found reports whether a get event located its object.
func (e Event) Found() bool { return parcel.FieldFound.ExtractFromFields(e.Fields) }

// Compressed reports whether a publish event stored an archive.
func (e Event) Compressed() bool { return parcel.FieldCompressed.ExtractFromFields(e.Fields) }

var parcelSignals = []capitan.Signal{
	parcel.PutStarted, parcel.PutCompleted, parcel.PutFailed,
	parcel.GetCompleted, parcel.GetFailed,
	parcel.DeleteCompleted, parcel.DeleteFailed,
	parcel.PresignCompleted, parcel.PresignFailed,
	parcel.PublishStarted, parcel.PublishCompleted, parcel.PublishRejected, parcel.PublishFailed,
}

// Recorder collects parcel events in emission order until stopped.
type Recorder struct {
	events []Event
	stops  []func(context.Context)
	mu     sync.Mutex
}

// Record starts recording signals, or every parcel signal when none are given.
// Call Stop before reading so that in-flight events are delivered.
func Record(signals ...capitan.Signal) *Recorder {
	if len(signals) == 0 {
		signals = parcelSignals
	}
	r := &Recorder{}
	for _, sig := range signals {
		l := capitan.Hook(sig, r.handle)
		r.stops = append(r.stops, func(ctx context.Context) {
			_ = l.Drain(ctx)
			l.Close()
		})
	}
	return r
}

func (r *Recorder) handle(_ context.Context, e *capitan.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Signal: e.Signal(), Fields: e.Fields()})
}

// Stop delivers pending events and detaches the recorder.
// Calling it again is a no-op.
func (r *Recorder) Stop(ctx context.Context) {
	r.mu.Lock()
	stops := r.stops
	r.stops = nil
	r.mu.Unlock()

	for _, stop := range stops {
		stop(ctx)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Event, len(r.events))
	copy(result, r.events)
	return result
}

// Count returns how many times sig was recorded.
func (r *Recorder) Count(sig capitan.Signal) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Signal == sig {
			n++
		}
	}
	return n
}

// Find returns the first recorded event for sig.
func (r *Recorder) Find(sig capitan.Signal) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.Signal == sig {
			return e, true
		}
	}
	return Event{}, false
}
