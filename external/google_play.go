package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zllovesuki/rtdn/purchase"
	"github.com/zllovesuki/rtdn/response"

	"github.com/cenkalti/backoff/v4"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Verifier resolves a purchase token into its current snapshot
type Verifier interface {
	// Verify returns nil snapshot and nil error when the purchase could not be verified
	Verify(ctx context.Context, subscriptionID, purchaseToken string) (*purchase.Snapshot, error)
}

// GooglePlayOptions configure the Google Play Developer API client
type GooglePlayOptions struct {
	PackageName     string
	CredentialsFile string
	Timeout         time.Duration
	MaxAttempts     uint64
	Logger          *zap.Logger
	// ClientOptions are appended after the credentials, mostly useful for endpoints in tests
	ClientOptions []option.ClientOption
}

// GooglePlayClient verifies subscription purchases through androidpublisher
type GooglePlayClient struct {
	GooglePlayOptions
	service *androidpublisher.Service
}

var _ Verifier = &GooglePlayClient{}

func NewGooglePlayClient(ctx context.Context, opts GooglePlayOptions) (*GooglePlayClient, error) {
	if len(opts.PackageName) == 0 {
		return nil, fmt.Errorf("empty PackageName is invalid")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 10
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	clientOptions := make([]option.ClientOption, 0, len(opts.ClientOptions)+1)
	if len(opts.CredentialsFile) > 0 {
		clientOptions = append(clientOptions, option.WithCredentialsFile(opts.CredentialsFile))
	}
	clientOptions = append(clientOptions, opts.ClientOptions...)
	svc, err := androidpublisher.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize androidpublisher service")
	}
	return &GooglePlayClient{
		GooglePlayOptions: opts,
		service:           svc,
	}, nil
}

func (g *GooglePlayClient) fetch(ctx context.Context, subscriptionID, purchaseToken string) (*androidpublisher.SubscriptionPurchase, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()
	sp, err := g.service.Purchases.Subscriptions.
		Get(g.PackageName, subscriptionID, purchaseToken).
		Context(ctx).
		Do()
	if err != nil {
		var gErr *googleapi.Error
		if extErrors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone) {
			return nil, backoff.Permanent(response.ErrInvalidPurchaseToken(purchaseToken))
		}
		if extErrors.As(err, &gErr) && gErr.Code >= 400 && gErr.Code < 500 && gErr.Code != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return sp, nil
}

// Verify will query Google Play for the purchase, retrying transient failures
func (g *GooglePlayClient) Verify(ctx context.Context, subscriptionID, purchaseToken string) (*purchase.Snapshot, error) {
	logger := g.Logger.With(
		zap.String("SubscriptionID", subscriptionID),
		zap.String("PurchaseToken", purchaseToken),
	)

	var sp *androidpublisher.SubscriptionPurchase
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.MaxAttempts-1),
		ctx,
	)
	err := backoff.Retry(func() error {
		var err error
		sp, err = g.fetch(ctx, subscriptionID, purchaseToken)
		return err
	}, policy)
	if extErrors.Is(err, response.ErrInvalidPurchaseToken("")) {
		logger.Warn("Purchase token rejected by Google Play",
			zap.Error(err),
		)
		return nil, nil
	}
	if err != nil {
		logger.Warn("Cannot verify purchase token",
			zap.Error(err),
		)
		return nil, nil
	}

	snapshot, err := SnapshotFromPurchase(sp)
	if err != nil {
		logger.Warn("Cannot convert purchase into snapshot",
			zap.Error(err),
		)
		return nil, nil
	}
	return snapshot, nil
}

// SnapshotFromPurchase maps the androidpublisher resource into a purchase.Snapshot
func SnapshotFromPurchase(sp *androidpublisher.SubscriptionPurchase) (*purchase.Snapshot, error) {
	if sp == nil {
		return nil, fmt.Errorf("nil SubscriptionPurchase is invalid")
	}
	s := &purchase.Snapshot{
		StartTime:           purchase.FromMillis(sp.StartTimeMillis),
		ExpiryTime:          purchase.FromMillis(sp.ExpiryTimeMillis),
		AutoRenewing:        sp.AutoRenewing,
		Currency:            sp.PriceCurrencyCode,
		Price:               purchase.FromMicros(sp.PriceAmountMicros),
		CountryCode:         sp.CountryCode,
		OrderID:             sp.OrderId,
		LinkedPurchaseToken: sp.LinkedPurchaseToken,
		Acknowledgement:     purchase.AcknowledgementState(sp.AcknowledgementState),
		ExternalAccountID:   sp.ObfuscatedExternalAccountId,
	}
	if sp.AutoResumeTimeMillis != 0 {
		t := purchase.FromMillis(sp.AutoResumeTimeMillis)
		s.AutoResumeTime = &t
	}
	if sp.UserCancellationTimeMillis != 0 {
		t := purchase.FromMillis(sp.UserCancellationTimeMillis)
		s.UserCancellationTime = &t
	}
	if sp.PaymentState != nil {
		ps := purchase.PaymentState(*sp.PaymentState)
		s.PaymentState = &ps
	}
	if !sp.AutoRenewing || sp.CancelReason != 0 {
		cr := purchase.CancelReason(sp.CancelReason)
		s.CancelReason = &cr
	}
	if ip := sp.IntroductoryPriceInfo; ip != nil {
		s.IntroductoryPrice = &purchase.IntroductoryPrice{
			Currency: ip.IntroductoryPriceCurrencyCode,
			Amount:   purchase.FromMicros(ip.IntroductoryPriceAmountMicros),
			Period:   ip.IntroductoryPricePeriod,
			Cycles:   ip.IntroductoryPriceCycles,
		}
	}
	raw, err := json.Marshal(sp)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot encode purchase")
	}
	if err := json.Unmarshal(raw, &s.Raw); err != nil {
		return nil, extErrors.Wrap(err, "Cannot decode purchase")
	}
	return s, nil
}
