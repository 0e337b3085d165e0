package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

// GCS writes objects under Prefix in Bucket. Writes are conditional on the
// object not existing, so replaying a batch never clobbers earlier reports
// unless Overwrite is set.
type GCS struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	Bucket    string
	Prefix    string
	Overwrite bool
	logger    *slog.Logger
}

func NewGCS(ctx context.Context, bucket, prefix string, logger *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bucket == "" {
		return nil, common.NewAppError(common.CodeConfig, "bucket must be provided", common.ErrInvalidInput)
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
		Bucket: bucket,
		Prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) object(name string) string {
	if g.Prefix == "" {
		return name
	}
	return path.Join(g.Prefix, name)
}

func (g *GCS) Location(name string) string {
	return "gs://" + g.Bucket + "/" + g.object(name)
}

func (g *GCS) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if err := checkName(name); err != nil {
		return err
	}
	obj := g.bucket.Object(g.object(name))
	if !g.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return g.writeErr(name, err)
	}
	if err := w.Close(); err != nil {
		return g.writeErr(name, err)
	}
	g.logger.Debug("sink.gcs.put", "object", g.Location(name), "bytes", len(data))
	return nil
}

func (g *GCS) writeErr(name string, err error) error {
	if isPreconditionFailed(err) {
		g.logger.Info("sink.gcs.exists", "object", g.Location(name))
		return nil
	}
	return common.NewAppError(common.CodeStorage, "write "+g.Location(name), err)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
