package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/parcel"
	ptesting "github.com/zoobzio/parcel/testing"
)

// offlineBackend points configuration at a MinIO endpoint that is never
// dialed; every case here fails before network I/O.
func offlineBackend(t *testing.T) {
	t.Helper()
	t.Setenv("PARCEL_BACKEND", "minio")
	t.Setenv("PARCEL_ENDPOINT", "localhost:9000")
	t.Setenv("PARCEL_ACCESS_KEY", "parcel")
	t.Setenv("PARCEL_SECRET_KEY", "parcelsecret")
	t.Setenv("PARCEL_USE_SSL", "false")
	t.Setenv("PARCEL_BUCKET", "")
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_Usage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitInvalid},
		{"unknown command", []string{"upload"}, exitInvalid},
		{"help", []string{"help"}, exitOK},
		{"publish without files", []string{"publish"}, exitInvalid},
		{"publish bad flag", []string{"publish", "-nope"}, exitInvalid},
		{"get without key", []string{"get"}, exitInvalid},
		{"delete without key", []string{"delete"}, exitInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(ctx, tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run(%v)=%d, want %d (stderr: %s)", tt.args, got, tt.want, stderr.String())
			}
		})
	}
}

func TestPublish_ValidationExit(t *testing.T) {
	offlineBackend(t)
	ctx := context.Background()

	t.Run("missing bucket", func(t *testing.T) {
		file := writeTemp(t, "test.txt", "testing")
		var stdout, stderr bytes.Buffer

		code := run(ctx, []string{"publish", file}, &stdout, &stderr)
		if code != exitInvalid {
			t.Fatalf("expected exit %d, got %d (stderr: %s)", exitInvalid, code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "storage must not be nil") {
			t.Errorf("expected storage error, got %q", stderr.String())
		}
		if stdout.Len() != 0 {
			t.Errorf("expected no output, got %q", stdout.String())
		}
	})

	t.Run("multiple files without compress", func(t *testing.T) {
		a := writeTemp(t, "a.txt", "alpha")
		b := writeTemp(t, "b.txt", "bravo")
		var stdout, stderr bytes.Buffer

		code := run(ctx, []string{"publish", "-bucket", "exports", "-key", "bundle", a, b}, &stdout, &stderr)
		if code != exitInvalid {
			t.Fatalf("expected exit %d, got %d (stderr: %s)", exitInvalid, code, stderr.String())
		}
		if !strings.Contains(stderr.String(), "compress must be true when storing multiple files") {
			t.Errorf("expected compress error, got %q", stderr.String())
		}
	})
}

func TestPublish_ConfigError(t *testing.T) {
	t.Setenv("PARCEL_BACKEND", "ftp")
	file := writeTemp(t, "test.txt", "testing")
	var stdout, stderr bytes.Buffer

	if code := run(context.Background(), []string{"publish", file}, &stdout, &stderr); code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
}

func TestGet_RequiresBucket(t *testing.T) {
	offlineBackend(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"get", "-key", "k"}, &stdout, &stderr)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(stderr.String(), "bucket is required") {
		t.Errorf("expected bucket error, got %q", stderr.String())
	}
}

func TestReadPayload(t *testing.T) {
	t.Run("single file keyed by base name", func(t *testing.T) {
		file := writeTemp(t, "report.csv", "a,b\n")

		payload, key, err := readPayload([]string{file}, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "report.csv" {
			t.Errorf("unexpected key: %q", key)
		}
		if payload.MultipleFiles() || string(payload.Raw()) != "a,b\n" {
			t.Errorf("unexpected payload: %+v", payload)
		}
	})

	t.Run("explicit key", func(t *testing.T) {
		file := writeTemp(t, "report.csv", "a,b\n")
		_, key, _ := readPayload([]string{file}, "latest.csv")
		if key != "latest.csv" {
			t.Errorf("unexpected key: %q", key)
		}
	})

	t.Run("several files", func(t *testing.T) {
		a := writeTemp(t, "a.txt", "alpha")
		b := writeTemp(t, "b.txt", "bravo")

		payload, key, err := readPayload([]string{a, b}, "bundle")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "bundle" {
			t.Errorf("unexpected key: %q", key)
		}
		entries := payload.ArchiveEntries()
		if !payload.MultipleFiles() || len(entries) != 2 {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if entries[0].Name != "a.txt" || string(entries[1].Contents) != "bravo" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := readPayload([]string{filepath.Join(t.TempDir(), "absent")}, ""); err == nil {
			t.Error("expected read error")
		}
	})
}

func TestEventAttrs(t *testing.T) {
	attrs := eventAttrs([]capitan.Field{
		parcel.FieldPath.Field("p/2024/01/02/k.txt"),
		parcel.FieldSize.Field(int64(7)),
		parcel.FieldDuration.Field(time.Millisecond),
	})

	got := map[string]string{}
	for _, a := range attrs {
		got[a.Key] = a.Value.String()
	}
	if got["path"] != "p/2024/01/02/k.txt" || got["size"] != "7" || got["duration"] != "1ms" {
		t.Errorf("unexpected attrs: %v", got)
	}
	if _, ok := got["bucket"]; ok {
		t.Error("unset fields should be omitted")
	}
}

func TestBridgeEvents(t *testing.T) {
	ctx := context.Background()
	mock := ptesting.NewMockProvider()
	stores := func(_, prefix string) (*parcel.Store, error) {
		return parcel.NewStore(mock, parcel.WithPrefix(prefix)), nil
	}
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	p := parcel.NewPublisher(stores, parcel.WithClock(func() time.Time { return now }))

	var buf bytes.Buffer
	flush := bridgeEvents(newLogger(&buf, false))
	rec := ptesting.Record(parcel.PublishCompleted, parcel.PutCompleted)

	if _, err := p.Publish(ctx, parcel.PublishRequest{
		Bucket:  "exports",
		Prefix:  "p/",
		Key:     "k.txt",
		Payload: parcel.String("hello"),
	}); err != nil {
		t.Fatalf("Publish() err=%v", err)
	}
	flush(ctx)
	rec.Stop(ctx)

	published, ok := rec.Find(parcel.PublishCompleted)
	if !ok {
		t.Fatal("expected PublishCompleted")
	}
	logged := buf.String()
	if !strings.Contains(logged, "msg=Published") || !strings.Contains(logged, "path="+published.Path()) {
		t.Errorf("expected bridged publish line for %q, got %q", published.Path(), logged)
	}

	// Object writes are debug events and stay out of an info-level log.
	if rec.Count(parcel.PutCompleted) != 1 {
		t.Errorf("expected one write, got %d", rec.Count(parcel.PutCompleted))
	}
	if strings.Contains(logged, "Object written") {
		t.Errorf("debug event logged at info level: %q", logged)
	}
	if _, ok := mock.Object("p/2024/01/02/k.txt"); !ok {
		t.Error("expected object in mock provider")
	}
}

func TestBridgeEvents_Verbose(t *testing.T) {
	ctx := context.Background()
	store := parcel.NewStore(ptesting.NewMockProvider())

	var buf bytes.Buffer
	flush := bridgeEvents(newLogger(&buf, true))
	_, _ = store.Put(ctx, "k.txt", []byte("hello"), parcel.ObjectOptions{})
	flush(ctx)

	if !strings.Contains(buf.String(), "Object written") || !strings.Contains(buf.String(), "size=5") {
		t.Errorf("expected debug write line, got %q", buf.String())
	}
}
