package services

import (
	"context"
	"strings"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

type ContactService struct {
	data gateway.Data
}

func NewContactService(data gateway.Data) *ContactService {
	return &ContactService{data: data}
}

// List returns contacts, most recently seen first, optionally filtered by a
// name/email substring.
func (c *ContactService) List(ctx context.Context, query string) ([]domain.Contact, error) {
	rows, err := c.data.Query(ctx, "contacts", nil, gateway.Desc("last_seen_at"), 0)
	if err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(rows))
	q := strings.ToLower(strings.TrimSpace(query))
	for _, r := range rows {
		contact := domain.ContactFromRow(r)
		if q != "" &&
			!strings.Contains(strings.ToLower(contact.Name), q) &&
			!strings.Contains(strings.ToLower(contact.Email), q) {
			continue
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

func (c *ContactService) Get(ctx context.Context, contactID string) (domain.Contact, error) {
	rows, err := c.data.Query(ctx, "contacts",
		gateway.Filter{"id": gateway.Eq(contactID)}, nil, 1)
	if err != nil {
		return domain.Contact{}, err
	}
	if len(rows) == 0 {
		return domain.Contact{}, aixos_errors.ErrNotFound
	}
	return domain.ContactFromRow(rows[0]), nil
}

// OpenConversation returns the support conversation for a contact, creating
// one when absent, so "Message" on a contact card always lands somewhere.
func (c *ContactService) OpenConversation(ctx context.Context, contactID string) (string, error) {
	if contactID == "" {
		return "", aixos_errors.ErrInvalidInput
	}
	raw, err := c.data.RPC(ctx, "get_or_create_conversation", map[string]any{
		"p_contact_id": contactID,
	})
	if err != nil {
		return "", err
	}
	return decodeRPCID(raw)
}
