// Package source reads bank CSV text from local files, stdin or Cloud Storage.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// Stdin is the location that reads from the loader's standard input.
const Stdin = "-"

const gcsScheme = "gs://"

// Fetcher downloads an object from a storage URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Document is fetched CSV text and the name it is recorded under.
type Document struct {
	Name string
	Text string
}

// Loader resolves a location to a Document.
type Loader struct {
	Stdin io.Reader
	GCS   Fetcher
}

// NewLoader returns a Loader reading stdin from in and gs:// URIs from Cloud Storage.
func NewLoader(in io.Reader) *Loader {
	return &Loader{Stdin: in, GCS: GCSFetcher{}}
}

// Load reads the document at location: "-" for stdin, gs://bucket/object for
// Cloud Storage, anything else as a local path.
func (l *Loader) Load(ctx context.Context, location string) (Document, error) {
	switch {
	case location == Stdin:
		if l.Stdin == nil {
			return Document{}, errors.New("no standard input available")
		}
		data, err := io.ReadAll(l.Stdin)
		if err != nil {
			return Document{}, fmt.Errorf("reading stdin: %w", err)
		}
		return Document{Name: "stdin", Text: string(data)}, nil

	case IsGCS(location):
		if l.GCS == nil {
			return Document{}, errors.New("cloud storage is not configured")
		}
		data, err := l.GCS.Fetch(ctx, location)
		if err != nil {
			return Document{}, err
		}
		return Document{Name: Name(location), Text: string(data)}, nil

	default:
		data, err := os.ReadFile(location)
		if err != nil {
			return Document{}, fmt.Errorf("reading %s: %w", location, err)
		}
		return Document{Name: Name(location), Text: string(data)}, nil
	}
}

// IsGCS reports whether location is a gs:// URI.
func IsGCS(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCS(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// Name returns the file name part of a location.
func Name(location string) string {
	if location == Stdin {
		return "stdin"
	}
	if IsGCS(location) {
		return path.Base(location)
	}
	return filepath.Base(location)
}

// GCSFetcher downloads objects with Application Default Credentials.
type GCSFetcher struct{}

// Fetch downloads the object bytes at a gs:// URI.
func (GCSFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return data, nil
}
