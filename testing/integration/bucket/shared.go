// Package bucket provides shared test infrastructure for parcel provider integration tests.
package bucket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/zoobzio/parcel"
)

// TestContext holds shared test resources for a provider.
type TestContext struct {
	Provider parcel.BucketProvider
	Bucket   string

	// StoreOptions are applied to every Store the suite builds, so a
	// backend without KMS can drop the default encryption mode.
	StoreOptions []parcel.StoreOption

	// FetchURLs downloads signed URLs and compares the body. Emulators that
	// sign for the real service host leave it false.
	FetchURLs bool

	Cleanup func() // optional cleanup function
}

func (tc *TestContext) store(prefix string) *parcel.Store {
	opts := append([]parcel.StoreOption{parcel.WithPrefix(prefix)}, tc.StoreOptions...)
	return parcel.NewStore(tc.Provider, opts...)
}

// RunCRUDTests runs the core provider test suite against the given context.
func RunCRUDTests(t *testing.T, tc *TestContext) {
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, tc) })
	t.Run("PutAndGet", func(t *testing.T) { testPutAndGet(t, tc) })
	t.Run("PutOverwrite", func(t *testing.T) { testPutOverwrite(t, tc) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, tc) })
	t.Run("DeleteNotFound", func(t *testing.T) { testDeleteNotFound(t, tc) })
}

// RunPresignTests runs the signed URL test suite.
func RunPresignTests(t *testing.T, tc *TestContext) {
	t.Run("PresignGet", func(t *testing.T) { testPresignGet(t, tc) })
}

// RunStoreTests runs the Store test suite.
func RunStoreTests(t *testing.T, tc *TestContext) {
	t.Run("PrefixedRoundTrip", func(t *testing.T) { testStoreRoundTrip(t, tc) })
	t.Run("GetAbsent", func(t *testing.T) { testStoreGetAbsent(t, tc) })
}

// RunPublishTests runs the end-to-end Publish test suite.
func RunPublishTests(t *testing.T, tc *TestContext) {
	t.Run("Raw", func(t *testing.T) { testPublishRaw(t, tc) })
	t.Run("Compressed", func(t *testing.T) { testPublishCompressed(t, tc) })
	t.Run("MultipleFiles", func(t *testing.T) { testPublishMultipleFiles(t, tc) })
}

func testGetNotFound(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	_, err := tc.Provider.Get(ctx, "nonexistent-key")
	if !errors.Is(err, parcel.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testPutAndGet(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	err := tc.Provider.Put(ctx, "crud/put-get.txt", []byte("hello"), &parcel.PutOptions{
		ContentType:        "text/plain",
		ContentDisposition: `attachment; filename="put-get.txt"`,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, err := tc.Provider.Get(ctx, "crud/put-get.txt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected 'hello', got %q", data)
	}
}

func testPutOverwrite(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	if err := tc.Provider.Put(ctx, "crud/overwrite.txt", []byte("first"), nil); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := tc.Provider.Put(ctx, "crud/overwrite.txt", []byte("second"), nil); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	data, err := tc.Provider.Get(ctx, "crud/overwrite.txt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected 'second', got %q", data)
	}
}

func testDelete(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	if err := tc.Provider.Put(ctx, "crud/delete.txt", []byte("gone"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := tc.Provider.Delete(ctx, "crud/delete.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := tc.Provider.Get(ctx, "crud/delete.txt")
	if !errors.Is(err, parcel.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func testDeleteNotFound(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	if err := tc.Provider.Delete(ctx, "crud/never-existed.txt"); err != nil {
		t.Errorf("expected nil deleting a missing key, got %v", err)
	}
}

func testPresignGet(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	if err := tc.Provider.Put(ctx, "presign/file.txt", []byte("signed"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	url, err := tc.Provider.PresignGet(ctx, "presign/file.txt", time.Hour)
	if err != nil {
		t.Fatalf("PresignGet failed: %v", err)
	}
	if url == "" {
		t.Fatal("expected non-empty url")
	}
	if tc.FetchURLs {
		if body := fetch(t, url); body != "signed" {
			t.Errorf("expected 'signed' from url, got %q", body)
		}
	}
}

func testStoreRoundTrip(t *testing.T, tc *TestContext) {
	ctx := context.Background()
	s := tc.store("store/")

	path, err := s.Put(ctx, "value.txt", []byte("stored"), parcel.ObjectOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if path != "store/value.txt" {
		t.Errorf("unexpected path: %q", path)
	}

	data, found, err := s.Get(ctx, "value.txt")
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if string(data) != "stored" {
		t.Errorf("expected 'stored', got %q", data)
	}

	if err := s.Delete(ctx, "value.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := s.Get(ctx, "value.txt"); found {
		t.Error("expected value to be deleted")
	}
}

func testStoreGetAbsent(t *testing.T, tc *TestContext) {
	ctx := context.Background()

	data, found, err := tc.store("store/").Get(ctx, "absent.txt")
	if err != nil {
		t.Fatalf("expected no error for absent key, got %v", err)
	}
	if found || data != nil {
		t.Errorf("expected absent result, got %q found=%v", data, found)
	}
}

func newPublisher(tc *TestContext) *parcel.Publisher {
	return parcel.NewPublisher(func(bucket, prefix string) (*parcel.Store, error) {
		if bucket != tc.Bucket {
			return nil, errors.New("unknown bucket " + bucket)
		}
		return tc.store(prefix), nil
	}, parcel.WithURLExpiry(time.Hour))
}

func publish(t *testing.T, tc *TestContext, req parcel.PublishRequest) *parcel.Published {
	t.Helper()
	result, err := newPublisher(tc).Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !result.Valid() {
		t.Fatalf("unexpected validation errors: %v", result.Errors)
	}
	return result.Published
}

func testPublishRaw(t *testing.T, tc *TestContext) {
	pub := publish(t, tc, parcel.PublishRequest{
		Bucket:  tc.Bucket,
		Prefix:  "publish/",
		Key:     "test.txt",
		Payload: parcel.String("testing"),
	})

	data, err := tc.Provider.Get(context.Background(), pub.FullPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "testing" {
		t.Errorf("expected 'testing', got %q", data)
	}
	if tc.FetchURLs {
		if body := fetch(t, pub.PublicURL); body != "testing" {
			t.Errorf("expected 'testing' from url, got %q", body)
		}
	}
}

func testPublishCompressed(t *testing.T, tc *TestContext) {
	pub := publish(t, tc, parcel.PublishRequest{
		Bucket:   tc.Bucket,
		Prefix:   "publish/",
		Key:      "test.txt",
		Payload:  parcel.String("testing"),
		Compress: true,
	})
	if pub.StoredFileName != "test.txt.zip" {
		t.Errorf("unexpected stored file name: %q", pub.StoredFileName)
	}

	data, err := tc.Provider.Get(context.Background(), pub.FullPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	files := unzip(t, data)
	if len(files) != 1 || files["test.txt"] != "testing" {
		t.Errorf("unexpected archive contents: %v", files)
	}
}

func testPublishMultipleFiles(t *testing.T, tc *TestContext) {
	pub := publish(t, tc, parcel.PublishRequest{
		Bucket: tc.Bucket,
		Prefix: "publish/",
		Key:    "bundle",
		Payload: parcel.Files(map[string][]byte{
			"a.txt": []byte("alpha"),
			"b.txt": []byte("bravo"),
		}),
		Compress: true,
	})

	data, err := tc.Provider.Get(context.Background(), pub.FullPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	files := unzip(t, data)
	if files["a.txt"] != "alpha" || files["b.txt"] != "bravo" {
		t.Errorf("unexpected archive contents: %v", files)
	}
}

func fetch(t *testing.T, url string) string {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("failed to fetch url: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return string(body)
}

func unzip(t *testing.T, data []byte) map[string]string {
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
