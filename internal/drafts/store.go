// Package drafts stages purchase data between the package page, checkout and the QR view.
// Every key the application writes is listed in AllKeys; ClearAll deletes exactly that list.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MohamedElsayed002/frontend-carwash/internal/models"
	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"
)

type Key string

const (
	KeyReservationData   Key = "reservationData"
	KeyPackageDetails    Key = "packageDetails"
	KeyOrderDetails      Key = "orderDetails"
	KeyCheckoutData      Key = "checkoutData"
	KeyCheckoutID        Key = "checkoutId"
	KeySelectedPackage   Key = "selectedPackage"
	KeyFinalOrderData    Key = "finalOrderData"
	KeyQRCodeData        Key = "qrCodeData"
	KeySelectedBranch    Key = "selectedBranch"
	KeyTipData           Key = "tipData"
	KeyBranchRating      Key = "branchRating"
	KeyBranchRatings     Key = "branchRatings"
	KeyMotivationData    Key = "motivationData"
	KeyVIPCheckoutData   Key = "vipCheckoutData"
	KeyVIPPackageDetails Key = "vipPackageDetails"
	KeyVIPOrderDetails   Key = "vipOrderDetails"
	KeySelectedHotel     Key = "selectedHotel"
	KeyScannedQRData     Key = "scannedQRData"
)

// AllKeys is the complete draft schema
var AllKeys = []Key{
	KeyReservationData,
	KeyPackageDetails,
	KeyOrderDetails,
	KeyCheckoutData,
	KeyCheckoutID,
	KeySelectedPackage,
	KeyFinalOrderData,
	KeyQRCodeData,
	KeySelectedBranch,
	KeyTipData,
	KeyBranchRating,
	KeyBranchRatings,
	KeyMotivationData,
	KeyVIPCheckoutData,
	KeyVIPPackageDetails,
	KeyVIPOrderDetails,
	KeySelectedHotel,
	KeyScannedQRData,
}

var known = func() map[Key]bool {
	m := make(map[Key]bool, len(AllKeys))
	for _, k := range AllKeys {
		m[k] = true
	}
	return m
}()

// ErrUnknownKey is returned for keys outside the schema
var ErrUnknownKey = errors.New("drafts: unknown key")

// OrderDetails is the summary shown on the payment pages
type OrderDetails struct {
	OrderID     string    `json:"orderId"`
	PackageName string    `json:"packageName"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency,omitempty"`
	CarType     string    `json:"carType,omitempty"`
	OrderDate   time.Time `json:"orderDate"`
}

type Store struct {
	kv  redisclient.KV
	ttl time.Duration
}

func NewStore(kv redisclient.KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func storageKey(sid string, key Key) string {
	return fmt.Sprintf("draft:%s:%s", sid, key)
}

// Put stores v as JSON under key
func (s *Store) Put(ctx context.Context, sid string, key Key, v any) error {
	if !known[key] {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, storageKey(sid, key), string(raw), s.ttl); err != nil {
		return fmt.Errorf("failed to stage %s: %w", key, err)
	}
	return nil
}

// Get decodes key into out and reports whether it was present
func (s *Store) Get(ctx context.Context, sid string, key Key, out any) (bool, error) {
	if !known[key] {
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	raw, err := s.kv.Get(ctx, storageKey(sid, key))
	if errors.Is(err, redisclient.ErrMissing) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Stage writes the draft purchase along with its package and order summaries
func (s *Store) Stage(ctx context.Context, sid string, draft *models.DraftPurchase, currency string) error {
	if err := s.Put(ctx, sid, KeyReservationData, draft); err != nil {
		return err
	}
	if err := s.Put(ctx, sid, KeyPackageDetails, draft.Package); err != nil {
		return err
	}
	return s.Put(ctx, sid, KeyOrderDetails, OrderDetails{
		OrderID:     draft.OrderID,
		PackageName: draft.Package.Name,
		Amount:      draft.TotalPrice.StringFixed(2),
		Currency:    currency,
		CarType:     draft.CarType,
		OrderDate:   draft.OrderDate,
	})
}

// Read returns the staged draft purchase, or nil if nothing is staged
func (s *Store) Read(ctx context.Context, sid string) (*models.DraftPurchase, error) {
	var draft models.DraftPurchase
	ok, err := s.Get(ctx, sid, KeyReservationData, &draft)
	if err != nil || !ok {
		return nil, err
	}
	return &draft, nil
}

// ClearAll deletes every key in the schema for sid
func (s *Store) ClearAll(ctx context.Context, sid string) error {
	keys := make([]string, 0, len(AllKeys))
	for _, k := range AllKeys {
		keys = append(keys, storageKey(sid, k))
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
