package services

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/tradmak/aixos/internal/storage"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

// maxAttachments caps image attachments per send.
const maxAttachments = 3

var allowedAttachmentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

const maxAttachmentBytes = 10 << 20

type AttachmentRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// AttachmentTicket is one presigned upload: the browser PUTs the bytes to
// UploadURL with Headers, then passes Ref through Send.
type AttachmentTicket struct {
	Ref       string            `json:"ref"`
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers,omitempty"`
	PublicURL string            `json:"public_url,omitempty"`
}

type UploadService struct {
	store *storage.Client
}

func NewUploadService(store *storage.Client) *UploadService {
	return &UploadService{store: store}
}

// PresignAttachments issues upload tickets for a send's attachments.
func (u *UploadService) PresignAttachments(ctx context.Context, agentID string, files []AttachmentRequest) ([]AttachmentTicket, error) {
	if u.store == nil {
		return nil, aixos_errors.ErrServiceUnavailable
	}
	if len(files) == 0 || len(files) > maxAttachments {
		return nil, aixos_errors.ErrInvalidInput
	}

	tickets := make([]AttachmentTicket, 0, len(files))
	for _, f := range files {
		ext, ok := allowedAttachmentTypes[strings.ToLower(f.ContentType)]
		if !ok {
			return nil, aixos_errors.ErrInvalidInput
		}
		if f.SizeBytes <= 0 || f.SizeBytes > maxAttachmentBytes {
			return nil, aixos_errors.ErrInvalidInput
		}

		key := path.Join("attachments", agentID, uuid.NewString()+ext)
		uploadURL, headers, err := u.store.PresignPut(ctx, key, f.ContentType, f.SizeBytes)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, AttachmentTicket{
			Ref:       key,
			UploadURL: uploadURL,
			Headers:   headers,
			PublicURL: u.store.FileURL(key),
		})
	}
	return tickets, nil
}

// ResolveRefs maps stored refs to public URLs for display.
func (u *UploadService) ResolveRefs(refs []string) []string {
	if u.store == nil {
		return nil
	}
	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, u.store.FileURL(ref))
	}
	return urls
}
