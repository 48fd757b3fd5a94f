package statestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/objectstorage/v1/objects"
)

// ObjectBackend persists to a single object in an OpenStack Swift
// container, the object-store analogue of an S3-style backend addressed
// by {region, bucket, key}. Region maps to the client's configured
// region, Bucket to the Swift container, Key to the object name.
type ObjectBackend struct {
	Client    *gophercloud.ServiceClient
	Container string
	Object    string
}

func (b *ObjectBackend) Write(ctx context.Context, data []byte) error {
	opts := objects.CreateOpts{Content: bytes.NewReader(data)}
	result := objects.Create(b.Client, b.Container, b.Object, opts)
	if result.Err != nil {
		return fmt.Errorf("statestore: upload %s/%s: %w", b.Container, b.Object, result.Err)
	}
	return nil
}

func (b *ObjectBackend) Read(ctx context.Context) ([]byte, bool, error) {
	result := objects.Download(b.Client, b.Container, b.Object, objects.DownloadOpts{})
	body, err := result.Extract()
	if err != nil {
		if _, ok := err.(gophercloud.ErrDefault404); ok {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("statestore: download %s/%s: %w", b.Container, b.Object, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, fmt.Errorf("statestore: read body %s/%s: %w", b.Container, b.Object, err)
	}
	return data, true, nil
}

var _ Backend = (*ObjectBackend)(nil)
