// Package storage archives write-once documents in Azure Blob Storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/JaimeStill/tawarruq/pkg/lifecycle"
)

// System stores immutable blobs under slash-separated keys.
type System interface {
	// Start ensures the container exists and registers a readiness probe.
	Start(lc *lifecycle.Coordinator) error
	// Put writes data at key. A blob already at key is left as is and
	// ErrExists is returned.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Open streams the blob at key. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type azure struct {
	client    *azblob.Client
	container *container.Client
	name      string
	logger    *slog.Logger
}

// New returns the Azure-backed System, or one failing with ErrDisabled when
// cfg has no connection string. No request is made before Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage")

	if !cfg.Enabled() {
		logger.Info("blob storage disabled")
		return disabled{}, nil
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
		logger:    logger.With("container", cfg.ContainerName),
	}, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		_, err := a.client.CreateContainer(lc.Context(), a.name, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("container setup failed", "error", err)
			return
		}
		a.logger.Info("container ready")
	})

	lc.AddProbe("storage", func(ctx context.Context) error {
		_, err := a.container.GetProperties(ctx, nil)
		return err
	})

	return nil
}

func (a *azure) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	anyETag := azcore.ETagAny
	_, err := a.client.UploadBuffer(ctx, a.name, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{IfNoneMatch: &anyETag},
		},
	})
	switch {
	case err == nil:
		return nil
	case bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet):
		return ErrExists
	default:
		return fmt.Errorf("put %s: %w", key, err)
	}
}

func (a *azure) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.name, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return resp.Body, nil
}

type disabled struct{}

func (disabled) Start(*lifecycle.Coordinator) error { return nil }

func (disabled) Put(context.Context, string, []byte, string) error { return ErrDisabled }

func (disabled) Open(context.Context, string) (io.ReadCloser, error) { return nil, ErrDisabled }

// Memory is an in-process System for tests and single-node development.
type Memory struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Start(*lifecycle.Coordinator) error { return nil }

func (m *Memory) Put(_ context.Context, key string, data []byte, _ string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; ok {
		return ErrExists
	}
	m.blobs[key] = bytes.Clone(data)
	return nil
}

func (m *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Keys lists stored keys.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.blobs))
}

// checkKey rejects empty, absolute, and non-canonical keys such as "a/../b".
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
