package delivery

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/models"
	"ms-bookworks/internal/providers"
)

// Media is the blob-store surface the delivery channel needs.
type Media interface {
	Save(ref string, data []byte) error
	URL(ref string) string
}

// EmailDelivery sends the buyer a download link for the finished book along
// with a QR code that opens the same link on a phone.
type EmailDelivery struct {
	Media    Media
	Notifier providers.Notifier
	Logger   *logger.Logger
}

func NewEmailDelivery(media Media, notifier providers.Notifier, log *logger.Logger) *EmailDelivery {
	return &EmailDelivery{Media: media, Notifier: notifier, Logger: log}
}

func (d *EmailDelivery) Deliver(order *models.Order) error {
	if order.DocumentURL == "" {
		return fmt.Errorf("order %s has no document url", order.OrderID)
	}

	qrURL, err := d.qrCodeURL(order)
	if err != nil {
		// The link still works without the QR code, so carry on.
		d.Logger.Warn("DELIVERY", fmt.Sprintf("qr code for order %s not generated: %v", order.OrderID, err))
	}

	subject := fmt.Sprintf("%s's book is ready!", order.ChildName)
	body := fmt.Sprintf(
		"Hello %s,\n\n"+
			"The personalized book for %s is finished. Download it here:\n\n"+
			"%s\n",
		order.BuyerName, order.ChildName, order.DocumentURL)
	if qrURL != "" {
		body += fmt.Sprintf("\nOr scan the QR code at %s to open it on your phone.\n", qrURL)
	}

	if err := d.Notifier.Send(order.BuyerEmail, subject, body); err != nil {
		return fmt.Errorf("failed to email buyer: %w", err)
	}

	d.Logger.LogOrder("delivery", order.OrderID, fmt.Sprintf("download link sent to %s", order.BuyerEmail))
	return nil
}

func (d *EmailDelivery) qrCodeURL(order *models.Order) (string, error) {
	png, err := qrcode.Encode(order.DocumentURL, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	ref := fmt.Sprintf("orders/%s/download_qr.png", order.OrderID)
	if err := d.Media.Save(ref, png); err != nil {
		return "", fmt.Errorf("failed to store qr code: %w", err)
	}
	return d.Media.URL(ref), nil
}
