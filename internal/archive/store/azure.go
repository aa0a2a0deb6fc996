package store

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobBackend stores archive objects in Azure Blob Storage via
// azblob, the canonical Go client for it; spec.md §4.I requires an Azure
// Blob backend.
type AzureBlobBackend struct {
	client *azblob.Client
}

// NewAzureBlobBackend builds a client from a storage account connection
// string (e.g. the AZURE_STORAGE_CONNECTION_STRING convention).
func NewAzureBlobBackend(connectionString string) (*AzureBlobBackend, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("store: azure client: %w", err)
	}
	return &AzureBlobBackend{client: client}, nil
}

func (b *AzureBlobBackend) Put(ctx context.Context, loc Location, r io.Reader, size int64) error {
	_, err := b.client.UploadStream(ctx, loc.Container, loc.Blob, r, nil)
	if err != nil {
		return fmt.Errorf("store: azure upload %s/%s: %w", loc.Container, loc.Blob, err)
	}
	return nil
}

func (b *AzureBlobBackend) Get(ctx context.Context, loc Location) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, loc.Container, loc.Blob, nil)
	if err != nil {
		return nil, fmt.Errorf("store: azure download %s/%s: %w", loc.Container, loc.Blob, err)
	}
	return resp.Body, nil
}

func (b *AzureBlobBackend) GetRange(ctx context.Context, loc Location, offset, length int64) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, loc.Container, loc.Blob, &azblob.DownloadStreamOptions{
		Range: azblob.HTTPRange{Offset: offset, Count: length},
	})
	if err != nil {
		return nil, fmt.Errorf("store: azure ranged download %s/%s: %w", loc.Container, loc.Blob, err)
	}
	return resp.Body, nil
}

func (b *AzureBlobBackend) Exists(ctx context.Context, loc Location) (bool, error) {
	client := b.client.ServiceClient().NewContainerClient(loc.Container).NewBlobClient(loc.Blob)
	_, err := client.GetProperties(ctx, nil)
	if err != nil {
		return false, nil
	}
	return true, nil
}
