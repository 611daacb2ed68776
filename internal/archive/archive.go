// Package archive keeps a copy of a project's document in Cloud Storage
// before the project is deleted.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/pkg/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type Archiver interface {
	// Archive stores doc and returns the object name it was written to.
	Archive(ctx context.Context, doc *models.ProjectDocument) (string, error)
	Enabled() bool
}

// New returns a BucketArchiver when an archive bucket is configured and a
// NopArchiver otherwise.
func New(ctx context.Context, cfg *config.GoogleConfig, logger *slog.Logger) (Archiver, error) {
	if cfg.ArchiveBucket == "" {
		return NopArchiver{}, nil
	}
	var opts []option.ClientOption
	if cfg.ArchiveCredentialFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.ArchiveCredentialFile))
	}
	return NewBucketArchiver(ctx, cfg.ArchiveBucket, logger, opts...)
}

type BucketArchiver struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

func NewBucketArchiver(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (*BucketArchiver, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &BucketArchiver{
		client: client,
		bucket: bucket,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (a *BucketArchiver) Enabled() bool { return true }

func (a *BucketArchiver) Archive(ctx context.Context, doc *models.ProjectDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding project document: %w", err)
	}

	name := ObjectName(doc.Project.ID, a.now())
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"
	w.Metadata = map[string]string{
		"projectId":   doc.Project.ID,
		"projectName": doc.Project.Name,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing archive %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("writing archive %s: %w", name, err)
	}

	a.logger.Info("project archived", "project_id", doc.Project.ID, "bucket", a.bucket, "object", name)
	return name, nil
}

// List returns the archive object names kept for a project, oldest first.
func (a *BucketArchiver) List(ctx context.Context, projectID string) ([]string, error) {
	it := a.client.Bucket(a.bucket).Objects(ctx, &storage.Query{Prefix: "projects/" + projectID + "/"})
	var names []string
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing archives: %w", err)
		}
		names = append(names, obj.Name)
	}
	return names, nil
}

func (a *BucketArchiver) Close() error {
	return a.client.Close()
}

// ObjectName lays archives out per project, named by UTC timestamp so they
// sort chronologically.
func ObjectName(projectID string, at time.Time) string {
	return fmt.Sprintf("projects/%s/%s.json", projectID, at.UTC().Format("20060102T150405Z"))
}

// NopArchiver is used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, *models.ProjectDocument) (string, error) { return "", nil }

func (NopArchiver) Enabled() bool { return false }
