// Command parcel publishes local files to an object store and prints a
// time-limited download URL.
//
// Usage:
//
//	parcel publish [-config f] [-bucket b] [-prefix p] [-key k] [-compress] file...
//	parcel get [-config f] [-bucket b] [-prefix p] -key k
//	parcel delete [-config f] [-bucket b] [-prefix p] -key k
//
// Backend settings come from the YAML file given by -config and PARCEL_*
// environment variables, which may also be set in a .env file in the
// working directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zoobzio/parcel"
	"github.com/zoobzio/parcel/config"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitInvalid = 2
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitInvalid
	}

	switch args[0] {
	case "publish":
		return publishCommand(ctx, args[1:], stdout, stderr)
	case "get":
		return getCommand(ctx, args[1:], stdout, stderr)
	case "delete":
		return deleteCommand(ctx, args[1:], stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return exitInvalid
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: parcel <command> [flags]

commands:
  publish   store files and print a signed download URL
  get       write a stored object to stdout
  delete    remove a stored object`)
}

// common holds the flags every command shares.
type common struct {
	configPath string
	bucket     string
	prefix     string
	key        string
	verbose    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to YAML configuration file")
	fs.StringVar(&c.bucket, "bucket", "", "Bucket name (overrides config)")
	fs.StringVar(&c.prefix, "prefix", "", "Key prefix (overrides config)")
	fs.StringVar(&c.key, "key", "", "Object key")
	fs.BoolVar(&c.verbose, "v", false, "Log storage events at debug level")
}

// open loads configuration, applies flag overrides and opens the backend.
func (c *common) open(ctx context.Context) (config.Config, *config.Backend, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if c.bucket != "" {
		cfg.Bucket = c.bucket
	}
	if c.prefix != "" {
		cfg.Prefix = c.prefix
	}
	backend, err := config.Open(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, backend, nil
}

func publishCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	compress := fs.Bool("compress", false, "Zip the payload before storing")
	if err := fs.Parse(args); err != nil {
		return exitInvalid
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "publish: at least one file is required")
		return exitInvalid
	}

	logger := newLogger(stderr, c.verbose)
	flush := bridgeEvents(logger)
	defer flush(ctx)

	cfg, backend, err := c.open(ctx)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		return exitFailure
	}
	defer func() { _ = backend.Close() }()

	payload, key, err := readPayload(files, c.key)
	if err != nil {
		logger.Error("Failed to read input", "error", err)
		return exitFailure
	}

	publisher := parcel.NewPublisher(backend.Stores, cfg.PublisherOptions()...)
	result, err := publisher.Publish(ctx, parcel.PublishRequest{
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		Key:      key,
		Payload:  payload,
		Compress: *compress,
	})
	if err != nil {
		logger.Error("Publish failed", "error", err)
		return exitFailure
	}
	if !result.Valid() {
		fmt.Fprintln(stderr, result.Errors.Error())
		return exitInvalid
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Published); err != nil {
		logger.Error("Failed to write result", "error", err)
		return exitFailure
	}
	return exitOK
}

// readPayload turns command line files into a payload. A single file is sent
// raw and keyed by its base name unless key is set; several files become
// named archive entries and need an explicit key.
func readPayload(files []string, key string) (*parcel.Payload, string, error) {
	if len(files) == 1 {
		data, err := os.ReadFile(files[0])
		if err != nil {
			return nil, "", err
		}
		if key == "" {
			key = filepath.Base(files[0])
		}
		return parcel.Bytes(data), key, nil
	}

	entries := make([]parcel.ArchiveEntry, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, "", err
		}
		entries = append(entries, parcel.ArchiveEntry{Name: filepath.Base(f), Contents: data})
	}
	return parcel.Entries(entries...), key, nil
}

func getCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitInvalid
	}
	if c.key == "" {
		fmt.Fprintln(stderr, "get: -key is required")
		return exitInvalid
	}

	logger := newLogger(stderr, c.verbose)
	flush := bridgeEvents(logger)
	defer flush(ctx)

	store, closeStore, err := c.store(ctx)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		return exitFailure
	}
	defer closeStore()

	data, found, err := store.Get(ctx, c.key)
	if err != nil {
		logger.Error("Get failed", "key", c.key, "error", err)
		return exitFailure
	}
	if !found {
		logger.Warn("Object not found", "path", store.Path(c.key))
		return exitFailure
	}
	if _, err := stdout.Write(data); err != nil {
		logger.Error("Failed to write object", "error", err)
		return exitFailure
	}
	return exitOK
}

func deleteCommand(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitInvalid
	}
	if c.key == "" {
		fmt.Fprintln(stderr, "delete: -key is required")
		return exitInvalid
	}

	logger := newLogger(stderr, c.verbose)
	flush := bridgeEvents(logger)
	defer flush(ctx)

	store, closeStore, err := c.store(ctx)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		return exitFailure
	}
	defer closeStore()

	if err := store.Delete(ctx, c.key); err != nil {
		logger.Error("Delete failed", "key", c.key, "error", err)
		return exitFailure
	}
	logger.Info("Deleted object", "path", store.Path(c.key))
	return exitOK
}

// store opens the configured bucket under the configured prefix as is,
// without the publish day partition.
func (c *common) store(ctx context.Context) (*parcel.Store, func(), error) {
	cfg, backend, err := c.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := backend.Stores(cfg.Bucket, cfg.Prefix)
	if err != nil {
		_ = backend.Close()
		if errors.Is(err, parcel.ErrNoProvider) {
			return nil, nil, errors.New("bucket is required")
		}
		return nil, nil, err
	}
	return s, func() { _ = backend.Close() }, nil
}
