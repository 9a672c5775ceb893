package parcel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zoobzio/capitan"
)

var testNow = time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// testFactory hands out Stores over one shared mock provider and counts builds.
type testFactory struct {
	provider *mockProvider
	mu       sync.Mutex
	builds   []string
	err      error
}

func (f *testFactory) build(bucket, prefix string) (*Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.builds = append(f.builds, bucket+":"+prefix)
	f.mu.Unlock()
	return NewStore(f.provider, WithPrefix(prefix)), nil
}

func newTestPublisher(opts ...PublisherOption) (*Publisher, *testFactory) {
	f := &testFactory{provider: newMockProvider()}
	opts = append([]PublisherOption{WithClock(fixedClock)}, opts...)
	return NewPublisher(f.build, opts...), f
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("failed to read %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

func TestPublisher_Publish_Raw(t *testing.T) {
	p, f := newTestPublisher()
	ctx := context.Background()

	result, err := p.Publish(ctx, PublishRequest{
		Bucket:  "exports",
		Prefix:  "prefix/",
		Key:     "test.txt",
		Payload: String("testing"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("unexpected validation errors: %v", result.Errors)
	}

	pub := result.Published
	if pub.StoredFileName != "test.txt" {
		t.Errorf("unexpected stored file name: %q", pub.StoredFileName)
	}
	if pub.FullPath != "prefix/2024/01/02/test.txt" {
		t.Errorf("unexpected full path: %q", pub.FullPath)
	}
	if pub.PublicURL != "https://bucket.example.com/prefix/2024/01/02/test.txt?expires=168h0m0s" {
		t.Errorf("unexpected url: %q", pub.PublicURL)
	}

	calls := f.provider.putCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 put, got %d", len(calls))
	}
	if string(calls[0].data) != "testing" {
		t.Errorf("unexpected stored data: %q", calls[0].data)
	}
	if calls[0].opts.ContentType != "text/plain" {
		t.Errorf("unexpected content type: %q", calls[0].opts.ContentType)
	}
	if calls[0].opts.ContentDisposition != `attachment; filename="test.txt"` {
		t.Errorf("unexpected content disposition: %q", calls[0].opts.ContentDisposition)
	}
	if calls[0].opts.ACL != ACLPrivate || calls[0].opts.ServerSideEncryption != SSEKMS {
		t.Errorf("expected default write policy, got %+v", calls[0].opts)
	}
}

func TestPublisher_Publish_Compressed(t *testing.T) {
	p, f := newTestPublisher()

	result, err := p.Publish(context.Background(), PublishRequest{
		Bucket:   "exports",
		Prefix:   "prefix/",
		Key:      "test.txt",
		Payload:  String("testing"),
		Compress: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pub := result.Published
	if pub.StoredFileName != "test.txt.zip" {
		t.Errorf("unexpected stored file name: %q", pub.StoredFileName)
	}
	if pub.FullPath != "prefix/2024/01/02/test.txt.zip" {
		t.Errorf("unexpected full path: %q", pub.FullPath)
	}

	calls := f.provider.putCalls()
	if calls[0].opts.ContentType != "application/zip" {
		t.Errorf("unexpected content type: %q", calls[0].opts.ContentType)
	}
	if calls[0].opts.ContentDisposition != `attachment; filename="test.txt.zip"` {
		t.Errorf("unexpected content disposition: %q", calls[0].opts.ContentDisposition)
	}

	files := readArchive(t, calls[0].data)
	if len(files) != 1 || files["test.txt"] != "testing" {
		t.Errorf("unexpected archive contents: %v", files)
	}
}

func TestPublisher_Publish_MultipleFiles(t *testing.T) {
	p, f := newTestPublisher()

	result, err := p.Publish(context.Background(), PublishRequest{
		Bucket: "exports",
		Prefix: "prefix/",
		Key:    "bundle",
		Payload: Files(map[string][]byte{
			"a.txt": []byte("alpha"),
			"b.csv": []byte("x,y\n1,2\n"),
		}),
		Compress: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Published.StoredFileName != "bundle.zip" {
		t.Errorf("unexpected stored file name: %q", result.Published.StoredFileName)
	}

	files := readArchive(t, f.provider.putCalls()[0].data)
	if len(files) != 2 {
		t.Fatalf("expected 2 archive entries, got %d", len(files))
	}
	if files["a.txt"] != "alpha" || files["b.csv"] != "x,y\n1,2\n" {
		t.Errorf("unexpected archive contents: %v", files)
	}
}

func TestPublisher_Publish_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     PublishRequest
		field   string
		kind    ErrorKind
		message string
	}{
		{
			name:    "missing bucket",
			req:     PublishRequest{Key: "test.txt", Payload: String("testing")},
			field:   FieldNameStorage,
			kind:    KindRequired,
			message: "must not be nil",
		},
		{
			name:    "blank key",
			req:     PublishRequest{Bucket: "b", Payload: String("testing")},
			field:   FieldNameKey,
			kind:    KindRequired,
			message: "must not be blank",
		},
		{
			name:    "nil payload",
			req:     PublishRequest{Bucket: "b", Key: "k"},
			field:   FieldNameValue,
			kind:    KindRequired,
			message: "must not be nil",
		},
		{
			name: "multiple files without compress",
			req: PublishRequest{
				Bucket:  "b",
				Key:     "k",
				Payload: Files(map[string][]byte{"a.txt": []byte("a"), "b.txt": []byte("b")}),
			},
			field:   FieldNameCompress,
			kind:    KindInvalid,
			message: "must be true when storing multiple files",
		},
		{
			name: "single named entry without compress",
			req: PublishRequest{
				Bucket:  "b",
				Key:     "k",
				Payload: Entries(ArchiveEntry{Name: "only.txt", Contents: []byte("x")}),
			},
			field:   FieldNameCompress,
			kind:    KindInvalid,
			message: "must be true when storing multiple files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, f := newTestPublisher()

			result, err := p.Publish(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("validation failures should not be errors, got %v", err)
			}
			if result.Valid() {
				t.Fatal("expected validation errors")
			}
			if result.Published != nil {
				t.Error("expected no published object")
			}
			got := result.Errors[tt.field]
			if len(got) != 1 || got[0].Kind != tt.kind || got[0].Message != tt.message {
				t.Errorf("unexpected errors for %s: %+v", tt.field, got)
			}
			if len(f.provider.putCalls()) != 0 {
				t.Error("expected no write on validation failure")
			}
			if len(f.builds) != 0 {
				t.Error("expected no store resolution on validation failure")
			}
		})
	}
}

func TestPublisher_Publish_CollectsAllErrors(t *testing.T) {
	p, _ := newTestPublisher()

	result, err := p.Publish(context.Background(), PublishRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{FieldNameStorage, FieldNameKey, FieldNameValue} {
		if len(result.Errors[field]) != 1 {
			t.Errorf("expected one error for %s, got %v", field, result.Errors[field])
		}
	}
	if _, ok := result.Errors[FieldNameCompress]; ok {
		t.Error("compress should not be checked without a payload")
	}
}

func TestPublisher_Publish_EmptyPayload(t *testing.T) {
	p, f := newTestPublisher()

	result, err := p.Publish(context.Background(), PublishRequest{
		Bucket:  "b",
		Key:     "empty.txt",
		Payload: Bytes(nil),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("empty payload should be valid, got %v", result.Errors)
	}
	if len(f.provider.putCalls()[0].data) != 0 {
		t.Error("expected empty object")
	}
}

func TestPublisher_Publish_DatePartition(t *testing.T) {
	local := time.FixedZone("UTC+10", 10*60*60)
	// 2024-01-02 03:00 at UTC+10 is still 2024-01-01 in UTC.
	clock := func() time.Time { return time.Date(2024, 1, 2, 3, 0, 0, 0, local) }
	p, _ := newTestPublisher(WithClock(clock))

	result, err := p.Publish(context.Background(), PublishRequest{
		Bucket:  "b",
		Key:     "k.txt",
		Payload: String("x"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Published.FullPath != "2024/01/01/k.txt" {
		t.Errorf("expected UTC partition, got %q", result.Published.FullPath)
	}
}

func TestPublisher_StoreCache(t *testing.T) {
	ctx := context.Background()
	req := PublishRequest{Bucket: "b", Prefix: "p/", Key: "k", Payload: String("x")}

	t.Run("reuses store", func(t *testing.T) {
		p, f := newTestPublisher()
		_, _ = p.Publish(ctx, req)
		_, _ = p.Publish(ctx, req)

		if len(f.builds) != 1 {
			t.Errorf("expected 1 store build, got %d", len(f.builds))
		}
		if f.builds[0] != "b:p/2024/01/02/" {
			t.Errorf("unexpected build args: %q", f.builds[0])
		}
	})

	t.Run("distinct buckets", func(t *testing.T) {
		p, f := newTestPublisher()
		_, _ = p.Publish(ctx, req)
		other := req
		other.Bucket = "c"
		_, _ = p.Publish(ctx, other)

		if len(f.builds) != 2 {
			t.Errorf("expected 2 store builds, got %d", len(f.builds))
		}
	})

	t.Run("without cache", func(t *testing.T) {
		p, f := newTestPublisher(WithoutCache())
		_, _ = p.Publish(ctx, req)
		_, _ = p.Publish(ctx, req)

		if len(f.builds) != 2 {
			t.Errorf("expected 2 store builds, got %d", len(f.builds))
		}
	})
}

func TestPublisher_URLExpiry(t *testing.T) {
	p, f := newTestPublisher(WithURLExpiry(time.Hour))

	_, err := p.Publish(context.Background(), PublishRequest{Bucket: "b", Key: "k", Payload: String("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.provider.expiries[0] != time.Hour {
		t.Errorf("expected 1h expiry, got %v", f.provider.expiries[0])
	}
}

func TestPublisher_Errors(t *testing.T) {
	ctx := context.Background()
	req := PublishRequest{Bucket: "b", Key: "k", Payload: String("x")}

	t.Run("nil factory", func(t *testing.T) {
		p := NewPublisher(nil)
		if _, err := p.Publish(ctx, req); !errors.Is(err, ErrNoProvider) {
			t.Errorf("expected ErrNoProvider, got %v", err)
		}
	})

	t.Run("factory returns nil store", func(t *testing.T) {
		p := NewPublisher(func(_, _ string) (*Store, error) { return nil, nil })
		if _, err := p.Publish(ctx, req); !errors.Is(err, ErrNoProvider) {
			t.Errorf("expected ErrNoProvider, got %v", err)
		}
	})

	t.Run("factory error", func(t *testing.T) {
		p, f := newTestPublisher()
		f.err = errors.New("unknown bucket")
		if _, err := p.Publish(ctx, req); !errors.Is(err, f.err) {
			t.Errorf("expected factory error, got %v", err)
		}
	})

	t.Run("write error", func(t *testing.T) {
		p, f := newTestPublisher()
		f.provider.putErr = errors.New("access denied")

		result, err := p.Publish(ctx, req)
		if !errors.Is(err, f.provider.putErr) {
			t.Errorf("expected write error, got %v", err)
		}
		if result != nil {
			t.Error("expected nil result on backend error")
		}
	})

	t.Run("sign error keeps object", func(t *testing.T) {
		p, f := newTestPublisher()
		f.provider.presignErr = errors.New("no credentials")

		if _, err := p.Publish(ctx, req); !errors.Is(err, f.provider.presignErr) {
			t.Errorf("expected sign error, got %v", err)
		}
		if _, ok := f.provider.data["2024/01/02/k"]; !ok {
			t.Error("expected object to remain stored")
		}
	})

	t.Run("archive error", func(t *testing.T) {
		p, f := newTestPublisher()
		_, err := p.Publish(ctx, PublishRequest{
			Bucket:   "b",
			Key:      "k",
			Payload:  Entries(ArchiveEntry{Name: "", Contents: []byte("x")}),
			Compress: true,
		})
		if !errors.Is(err, ErrArchive) {
			t.Errorf("expected ErrArchive, got %v", err)
		}
		if len(f.provider.putCalls()) != 0 {
			t.Error("expected no write on archive error")
		}
	})
}

func TestStoredFileName(t *testing.T) {
	if got := StoredFileName("report.csv", false); got != "report.csv" {
		t.Errorf("unexpected name: %q", got)
	}
	if got := StoredFileName("report.csv", true); got != "report.csv.zip" {
		t.Errorf("unexpected name: %q", got)
	}
}

func TestPublisher_Concurrent(t *testing.T) {
	p, f := newTestPublisher()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Publish(ctx, PublishRequest{Bucket: "b", Key: "k", Payload: String("x")})
		}()
	}
	wg.Wait()

	if len(f.builds) != 1 {
		t.Errorf("expected a single cached store, got %d builds", len(f.builds))
	}
	if len(f.provider.putCalls()) != 20 {
		t.Errorf("expected 20 writes, got %d", len(f.provider.putCalls()))
	}
}

// Signal emission tests

func TestPublisher_EmitsSignals(t *testing.T) {
	p, _ := newTestPublisher()

	var gotStarted bool
	var fullPath string
	var mu sync.Mutex

	l1 := capitan.Hook(PublishStarted, func(_ context.Context, _ *capitan.Event) {
		mu.Lock()
		gotStarted = true
		mu.Unlock()
	})
	l2 := capitan.Hook(PublishCompleted, func(_ context.Context, e *capitan.Event) {
		mu.Lock()
		fullPath = FieldPath.ExtractFromFields(e.Fields())
		mu.Unlock()
	})

	ctx := context.Background()
	_, err := p.Publish(ctx, PublishRequest{Bucket: "b", Prefix: "p/", Key: "k.txt", Payload: String("x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Wait for async events
	_ = l1.Drain(ctx)
	_ = l2.Drain(ctx)
	l1.Close()
	l2.Close()

	mu.Lock()
	defer mu.Unlock()

	if !gotStarted {
		t.Error("expected PublishStarted signal")
	}
	if fullPath != "p/2024/01/02/k.txt" {
		t.Errorf("unexpected path on PublishCompleted: %q", fullPath)
	}
}

func TestPublisher_EmitsRejectedSignal(t *testing.T) {
	p, _ := newTestPublisher()

	var gotRejected bool
	var mu sync.Mutex

	l := capitan.Hook(PublishRejected, func(_ context.Context, _ *capitan.Event) {
		mu.Lock()
		gotRejected = true
		mu.Unlock()
	})

	ctx := context.Background()
	_, _ = p.Publish(ctx, PublishRequest{Key: "k", Payload: String("x")})

	// Wait for async events
	_ = l.Drain(ctx)
	l.Close()

	mu.Lock()
	defer mu.Unlock()

	if !gotRejected {
		t.Error("expected PublishRejected signal")
	}
}

func TestPublisher_EmitsFailedSignal(t *testing.T) {
	p, f := newTestPublisher()
	f.provider.putErr = errors.New("denied")

	var gotFailed bool
	var mu sync.Mutex

	l := capitan.Hook(PublishFailed, func(_ context.Context, _ *capitan.Event) {
		mu.Lock()
		gotFailed = true
		mu.Unlock()
	})

	ctx := context.Background()
	_, _ = p.Publish(ctx, PublishRequest{Bucket: "b", Key: "k", Payload: String("x")})

	// Wait for async events
	_ = l.Drain(ctx)
	l.Close()

	mu.Lock()
	defer mu.Unlock()

	if !gotFailed {
		t.Error("expected PublishFailed signal")
	}
}
