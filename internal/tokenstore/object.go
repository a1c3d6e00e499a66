package tokenstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig captures configuration for the S3-compatible object store.
type ObjectConfig struct {
	// Endpoint is host[:port], or a URL whose scheme decides UseSSL.
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore persists records as JSON objects in an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	cfg    ObjectConfig
}

// NewObjectStore creates an object store client. No request is made until first use.
func NewObjectStore(cfg ObjectConfig) (*ObjectStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object store: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store: secret key is required")
	}
	endpoint, useSSL, err := resolveObjectEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	cfg.Endpoint, cfg.UseSSL = endpoint, useSSL

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}
	return &ObjectStore{client: client, cfg: cfg}, nil
}

// Save uploads rec under id and returns an s3:// locator for logs.
func (s *ObjectStore) Save(ctx context.Context, id string, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("object store: record is nil")
	}
	key, err := s.objectKey(id)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("object store: marshal record: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("object store: put object %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key), nil
}

// Load downloads the record stored under id.
func (s *ObjectStore) Load(ctx context.Context, id string) (*Record, error) {
	key, err := s.objectKey(id)
	if err != nil {
		return nil, err
	}
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("object store: fetch %s: %w", key, err)
	}
	defer func() { _ = object.Close() }()
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("object store: read %s: %w", key, err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("object store: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the object for id. A missing object is not an error.
func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	key, err := s.objectKey(id)
	if err != nil {
		return err
	}
	if err = s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isObjectNotFound(err) {
			return nil
		}
		return fmt.Errorf("object store: delete object %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStore) objectKey(id string) (string, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" {
		return "", fmt.Errorf("object store: id is empty")
	}
	if s.cfg.Prefix == "" {
		return id, nil
	}
	return path.Join(s.cfg.Prefix, id), nil
}

// resolveObjectEndpoint strips an http/https scheme from endpoint, letting it decide TLS.
func resolveObjectEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), useSSL, nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("object store: parse endpoint %q: %w", endpoint, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http":
		useSSL = false
	case "https":
		useSSL = true
	default:
		return "", false, fmt.Errorf("object store: unsupported scheme %q (only http and https are allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("object store: endpoint %q is missing host information", endpoint)
	}
	return parsed.Host, useSSL, nil
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
