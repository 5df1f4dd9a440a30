package services

import (
	"context"

	"github.com/tradmak/aixos/internal/domain"
	"github.com/tradmak/aixos/internal/gateway"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

type InquiryService struct {
	data gateway.Data
}

func NewInquiryService(data gateway.Data) *InquiryService {
	return &InquiryService{data: data}
}

// List returns captured leads, newest first.
func (i *InquiryService) List(ctx context.Context) ([]domain.Inquiry, error) {
	rows, err := i.data.Query(ctx, "inquiries", nil, gateway.Desc("created_at"), 0)
	if err != nil {
		return nil, err
	}
	inquiries := make([]domain.Inquiry, 0, len(rows))
	for _, r := range rows {
		inquiries = append(inquiries, domain.InquiryFromRow(r))
	}
	return inquiries, nil
}

// MarkContacted flips a lead to contacted.
func (i *InquiryService) MarkContacted(ctx context.Context, inquiryID string) error {
	if inquiryID == "" {
		return aixos_errors.ErrInvalidInput
	}
	_, err := i.data.Mutate(ctx, "inquiries", gateway.OpUpdate,
		map[string]any{"status": "contacted"},
		gateway.Filter{"id": gateway.Eq(inquiryID)})
	return err
}
