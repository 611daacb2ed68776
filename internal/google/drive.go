package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const documentMimeType = "application/json"

// Drive stores project documents as JSON files in the user's Drive.
type Drive struct {
	f   *Factory
	svc *drive.Service
}

func (f *Factory) Drive(ctx context.Context, tok *oauth2.Token) (*Drive, error) {
	svc, err := drive.NewService(ctx, f.clientOptions(tok)...)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	return &Drive{f: f, svc: svc}, nil
}

// IsPlaceholder reports whether fileID was assigned at project creation and
// has no Drive file behind it yet.
func IsPlaceholder(fileID string) bool {
	return fileID == "" || strings.HasPrefix(fileID, "temp-")
}

// SaveDocument writes doc to fileID, creating the file when fileID is a
// placeholder. It returns the Drive file id.
func (d *Drive) SaveDocument(ctx context.Context, fileID string, doc *models.ProjectDocument) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding project document: %w", err)
	}

	return call(ctx, d.f, ServiceDrive, func(ctx context.Context) (string, error) {
		media := bytes.NewReader(data)
		if IsPlaceholder(fileID) {
			file, err := d.svc.Files.Create(&drive.File{
				Name:     documentName(doc.Project.Name),
				MimeType: documentMimeType,
			}).Media(media, googleapi.ContentType(documentMimeType)).Fields("id").Context(ctx).Do()
			if err != nil {
				return "", err
			}
			return file.Id, nil
		}

		file, err := d.svc.Files.Update(fileID, &drive.File{}).
			Media(media, googleapi.ContentType(documentMimeType)).Fields("id").Context(ctx).Do()
		if err != nil {
			return "", err
		}
		return file.Id, nil
	})
}

func (d *Drive) LoadDocument(ctx context.Context, fileID string) (*models.ProjectDocument, error) {
	if IsPlaceholder(fileID) {
		return nil, apperr.Invalid("driveFileId", "project has not been synced to Drive yet")
	}

	data, err := call(ctx, d.f, ServiceDrive, func(ctx context.Context) ([]byte, error) {
		resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}

	var doc models.ProjectDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding project document: %w", err)
	}
	return &doc, nil
}

func documentName(projectName string) string {
	return "ProjectFlow - " + projectName + ".json"
}
