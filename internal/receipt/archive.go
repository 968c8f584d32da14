package receipt

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	pkglog "github.com/weiawesome/seedling-live/pkg/log"
	"github.com/weiawesome/seedling-live/pkg/storage"
)

const keyPrefix = "receipts"

// Archive stores rendered receipts in blob storage.
type Archive struct {
	store     storage.Storage
	urlExpiry time.Duration
}

// NewArchive wraps store. urlExpiry bounds presigned URLs on S3.
func NewArchive(store storage.Storage, urlExpiry time.Duration) *Archive {
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}
	return &Archive{store: store, urlExpiry: urlExpiry}
}

// Save writes doc under receipts/{userID}/{ulid}.pdf and returns its key and URL.
func (a *Archive) Save(ctx context.Context, userID string, doc []byte, contentType string) (key, url string, err error) {
	if userID == "" {
		return "", "", fmt.Errorf("archive receipt: empty user id")
	}

	key = path.Join(keyPrefix, userID, ulid.Make().String()+".pdf")
	if err := a.store.Write(ctx, key, bytes.NewReader(doc), int64(len(doc)), contentType); err != nil {
		return "", "", fmt.Errorf("archive receipt: %w", err)
	}

	url, err = a.store.GetURL(ctx, key, a.urlExpiry)
	if err != nil {
		return key, "", fmt.Errorf("receipt url: %w", err)
	}

	l := pkglog.Ctx(ctx)
	l.Info().
		Str(pkglog.FieldUserID, userID).
		Str("key", key).
		Int("size", len(doc)).
		Msg("receipt archived")
	return key, url, nil
}

// List returns the archived receipts of userID in the order the store reports them.
func (a *Archive) List(ctx context.Context, userID string) ([]storage.FileInfo, error) {
	files, err := a.store.List(ctx, path.Join(keyPrefix, userID)+"/")
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	out := files[:0]
	for _, f := range files {
		if strings.HasSuffix(f.Key, ".pdf") {
			out = append(out, f)
		}
	}
	return out, nil
}
