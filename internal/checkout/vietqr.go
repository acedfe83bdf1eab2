package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/noah-isme/storefront-gateway/internal/confcache"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
)

// Remote config keys for the transfer QR. Served through the TTL cache so
// bank detail changes propagate without a redeploy.
const (
	ConfigKeyQRBank        = "payment.vietqr.bank"
	ConfigKeyQRAccount     = "payment.vietqr.account"
	ConfigKeyQRAccountName = "payment.vietqr.account_name"
	ConfigKeyQRTemplate    = "payment.vietqr.template"
)

const defaultQRTemplate = "compact2"

// QRBuilder composes a VietQR image link for bank-transfer payments. The
// link is presentational; settlement is confirmed by the backend, not here.
type QRBuilder struct {
	Config *confcache.Cache
}

// PaymentLink returns the QR image URL for the given amount and transfer note.
func (b *QRBuilder) PaymentLink(ctx context.Context, amount pricing.Money, note string) (string, error) {
	if b == nil || b.Config == nil {
		return "", fmt.Errorf("checkout: qr builder not configured")
	}
	bank, err := b.Config.Get(ctx, ConfigKeyQRBank)
	if err != nil {
		return "", fmt.Errorf("checkout: load qr bank: %w", err)
	}
	account, err := b.Config.Get(ctx, ConfigKeyQRAccount)
	if err != nil {
		return "", fmt.Errorf("checkout: load qr account: %w", err)
	}
	template, err := b.Config.Get(ctx, ConfigKeyQRTemplate)
	if err != nil || template == "" {
		template = defaultQRTemplate
	}

	q := url.Values{}
	q.Set("amount", strconv.FormatInt(int64(amount), 10))
	if note != "" {
		q.Set("addInfo", note)
	}
	if name, err := b.Config.Get(ctx, ConfigKeyQRAccountName); err == nil && name != "" {
		q.Set("accountName", name)
	}
	return fmt.Sprintf("https://img.vietqr.io/image/%s-%s-%s.png?%s", bank, account, template, q.Encode()), nil
}
