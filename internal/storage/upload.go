package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// UploadReceipt identifies a stored document: the content-derived root hash
// and the transaction that submitted it for network inclusion.
type UploadReceipt struct {
	RootHash string
	TxHash   string
}

// PersistenceError wraps any failure in the hashing or submission steps.
// Persistence is all-or-nothing; a receipt is only returned when the network
// accepted the document.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist document: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Uploader writes a document to durable storage.
type Uploader interface {
	Upload(ctx context.Context, payload []byte) (UploadReceipt, error)
}

// IndexerClient submits payloads to the storage network's indexer.
type IndexerClient struct {
	client *resty.Client
}

func NewIndexerClient(indexerURL string) *IndexerClient {
	return &IndexerClient{client: resty.New().SetBaseURL(indexerURL).SetTimeout(60 * time.Second)}
}

type uploadRequest struct {
	Root string `json:"root"`
	Data string `json:"data"`
	Size int    `json:"size"`
}

type uploadResponse struct {
	TxHash string `json:"txHash"`
}

func (c *IndexerClient) Upload(ctx context.Context, payload []byte) (UploadReceipt, error) {
	root := MerkleRoot(payload)

	body := uploadRequest{
		Root: root,
		Data: base64.StdEncoding.EncodeToString(payload),
		Size: len(payload),
	}

	var out uploadResponse
	res, err := c.client.R().SetContext(ctx).SetBody(body).SetResult(&out).Post("/v1/files")
	if err != nil {
		return UploadReceipt{}, &PersistenceError{Err: err}
	}
	if !res.IsSuccess() {
		return UploadReceipt{}, &PersistenceError{Err: fmt.Errorf("indexer returned status %d: %s", res.StatusCode(), res.String())}
	}
	if out.TxHash == "" {
		return UploadReceipt{}, &PersistenceError{Err: fmt.Errorf("indexer accepted upload but returned no transaction hash")}
	}

	return UploadReceipt{RootHash: root, TxHash: out.TxHash}, nil
}

// UploadJSON serializes a document and uploads it. Pretty-printing is fine
// here: the addressing scheme hashes the serialized bytes, and Go's encoder
// is deterministic for a given value.
func UploadJSON(ctx context.Context, uploader Uploader, doc any) (UploadReceipt, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return UploadReceipt{}, &PersistenceError{Err: fmt.Errorf("error serializing document: %w", err)}
	}
	return uploader.Upload(ctx, payload)
}
