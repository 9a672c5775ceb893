package parcel

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// partitionLayout is the UTC day partition appended to the request prefix.
const partitionLayout = "2006/01/02/"

// StoreFactory builds a Store for bucket whose keys live under prefix.
type StoreFactory func(bucket, prefix string) (*Store, error)

// PublishRequest describes a payload to make externally available.
type PublishRequest struct {
	Bucket   string
	Prefix   string
	Key      string
	Payload  *Payload
	Compress bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithClock sets the clock used to compute the day partition.
func WithClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		p.now = now
	}
}

// WithURLExpiry sets the lifetime of published URLs.
// Zero or less means DefaultURLExpiry.
func WithURLExpiry(expiry time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.expiry = expiry
	}
}

// WithoutCache makes the Publisher build a fresh Store on every call.
func WithoutCache() PublisherOption {
	return func(p *Publisher) {
		p.cache = false
	}
}

type storeKey struct {
	bucket string
	prefix string
}

// Publisher stores payloads, zipped when asked, under a day-partitioned
// prefix and returns a signed URL for each. Safe for concurrent use.
type Publisher struct {
	factory StoreFactory
	now     func() time.Time
	expiry  time.Duration
	cache   bool

	mu     sync.Mutex
	stores map[storeKey]*Store
}

// NewPublisher creates a Publisher resolving Stores through factory.
// Stores are cached per bucket and resolved prefix unless WithoutCache is given.
func NewPublisher(factory StoreFactory, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		factory: factory,
		now:     time.Now,
		cache:   true,
		stores:  make(map[storeKey]*Store),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Publish validates req, converts its payload and stores it, returning a
// signed URL for the stored object.
//
// Validation failures are reported in Result.Errors with a nil error and
// no I/O performed. Archive and backend failures are returned as errors.
// If the write succeeds but signing fails the object stays stored.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*Result, error) {
	start := time.Now()
	now := p.now().UTC()
	prefix := req.Prefix + now.Format(partitionLayout)

	capitan.Emit(ctx, PublishStarted,
		FieldBucket.Field(req.Bucket),
		FieldPrefix.Field(prefix),
		FieldKey.Field(req.Key),
		FieldCompressed.Field(req.Compress),
	)

	if errs := validate(req); len(errs) > 0 {
		capitan.Emit(ctx, PublishRejected,
			FieldKey.Field(req.Key),
			FieldError.Field(errs),
			FieldDuration.Field(time.Since(start)),
		)
		return &Result{Errors: errs}, nil
	}

	published, err := p.publish(ctx, req, prefix, now)
	if err != nil {
		capitan.Emit(ctx, PublishFailed,
			FieldKey.Field(req.Key),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return nil, err
	}

	capitan.Emit(ctx, PublishCompleted,
		FieldKey.Field(published.StoredFileName),
		FieldPath.Field(published.FullPath),
		FieldDuration.Field(time.Since(start)),
	)
	return &Result{Published: published}, nil
}

func (p *Publisher) publish(ctx context.Context, req PublishRequest, prefix string, now time.Time) (*Published, error) {
	name := StoredFileName(req.Key, req.Compress)

	data, err := convert(req, now)
	if err != nil {
		return nil, err
	}

	store, err := p.store(req.Bucket, prefix)
	if err != nil {
		return nil, err
	}

	fullPath, err := store.Put(ctx, name, data, ObjectOptions{
		ContentType:        ContentTypeFor(name),
		ContentDisposition: `attachment; filename="` + name + `"`,
	})
	if err != nil {
		return nil, err
	}

	url, err := store.PublicURL(ctx, name, p.expiry)
	if err != nil {
		return nil, err
	}

	return &Published{
		StoredFileName: name,
		FullPath:       fullPath,
		PublicURL:      url,
	}, nil
}

// StoredFileName returns the object name a key is stored under.
func StoredFileName(key string, compress bool) string {
	if compress {
		return key + ArchiveExtension
	}
	return key
}

func validate(req PublishRequest) FieldErrors {
	errs := FieldErrors{}
	if req.Bucket == "" {
		errs.Add(FieldNameStorage, KindRequired, "must not be nil")
	}
	if req.Key == "" {
		errs.Add(FieldNameKey, KindRequired, "must not be blank")
	}
	if req.Payload == nil {
		errs.Add(FieldNameValue, KindRequired, "must not be nil")
	} else if req.Payload.MultipleFiles() && !req.Compress {
		errs.Add(FieldNameCompress, KindInvalid, "must be true when storing multiple files")
	}
	return errs
}

func convert(req PublishRequest, now time.Time) ([]byte, error) {
	switch {
	case req.Payload.MultipleFiles():
		return BuildArchive(req.Payload.ArchiveEntries(), now)
	case req.Compress:
		return BuildArchive([]ArchiveEntry{{Name: req.Key, Contents: req.Payload.Raw()}}, now)
	default:
		return req.Payload.Raw(), nil
	}
}

func (p *Publisher) store(bucket, prefix string) (*Store, error) {
	if p.factory == nil {
		return nil, ErrNoProvider
	}
	if !p.cache {
		return p.build(bucket, prefix)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	k := storeKey{bucket: bucket, prefix: prefix}
	if s, ok := p.stores[k]; ok {
		return s, nil
	}
	s, err := p.build(bucket, prefix)
	if err != nil {
		return nil, err
	}
	p.stores[k] = s
	return s, nil
}

func (p *Publisher) build(bucket, prefix string) (*Store, error) {
	s, err := p.factory(bucket, prefix)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoProvider
	}
	return s, nil
}
