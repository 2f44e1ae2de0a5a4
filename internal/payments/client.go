package payments

import (
	"context"
	"fmt"
	"net/http"

	"slotbook/pkg/client"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Client queries the payment service for a reservation's settlement
// state over HTTP.
type Client struct {
	http *client.HttpClient
	log  *logger.Logger
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		http: client.NewHttpClient(baseURL),
		log:  log,
	}
}

type paymentStatusResponse struct {
	ReservationID string              `json:"reservation_id"`
	Status        model.PaymentStatus `json:"status"`
}

func (c *Client) GetPaymentStatus(ctx context.Context, reservationID string) (model.PaymentStatus, error) {
	resp, err := c.http.GET(ctx, fmt.Sprintf("/payments/%s/status", reservationID))
	if err != nil {
		return "", fmt.Errorf("payment service request failed: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// No payment record yet means nothing has been paid.
		return model.PaymentPending, nil
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Unavailable("payment service")
	}

	var body paymentStatusResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return "", fmt.Errorf("failed to decode payment status: %w", err)
	}

	switch body.Status {
	case model.PaymentPending, model.PaymentPartiallyPaid, model.PaymentFullyPaid:
		return body.Status, nil
	default:
		return "", fmt.Errorf("unknown payment status: %q", body.Status)
	}
}
