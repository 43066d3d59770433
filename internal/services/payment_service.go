package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// PaymentService starts (or resumes) hosted-checkout transactions at the
// gateway for sessions and pre-bookings.
type PaymentService struct {
	db             *gorm.DB
	midtransClient *MidtransService
}

func NewPaymentService(db *gorm.DB, midtransClient *MidtransService) *PaymentService {
	return &PaymentService{
		db:             db,
		midtransClient: midtransClient,
	}
}

// InitiatePaymentResult holds the result of an initiation attempt
type InitiatePaymentResult struct {
	Token       string
	RedirectURL string
	IsExisting  bool
}

// InitiateSessionPayment creates a Snap transaction for a pending session.
// If the session already has a gateway transaction it is resumed while still
// pending at Midtrans; a dead one (deny/expire/cancel) gets a fresh order id
// so the gateway does not reject the reused one.
func (s *PaymentService) InitiateSessionPayment(session *models.CheckoutSession, total float64, customerName, customerEmail, callbackURL string) (*InitiatePaymentResult, error) {
	if session.Status != models.SessionStatusPending {
		return nil, fmt.Errorf("session is already settled")
	}

	if len(session.ResponseMetadata) > 0 {
		statusResp, err := s.midtransClient.CheckTransaction(session.OrderID)
		if err == nil {
			switch statusResp.TransactionStatus {
			case "settlement", "capture":
				return nil, errors.New("payment already made")
			case "deny", "expire", "cancel", "failure":
				// Dead at the gateway; fall through and create a new one
			default:
				// Still pending at the gateway, hand back the stored redirect
				var midtransResp snap.Response
				if err := json.Unmarshal(session.ResponseMetadata, &midtransResp); err == nil {
					return &InitiatePaymentResult{
						Token:       midtransResp.Token,
						RedirectURL: midtransResp.RedirectURL,
						IsExisting:  true,
					}, nil
				}
			}
		}
		// Status check failed or transaction is dead: issue a new order id
		session.OrderID = NewOrderID(OrderKindSession)
	}

	items := make([]midtrans.ItemDetails, 0, len(session.Cart))
	for i, item := range session.Cart {
		name := string(item.ItemType)
		if item.ItemSlug != nil {
			name = fmt.Sprintf("%s: %s", item.ItemType, *item.ItemSlug)
		} else if item.ItemID != nil {
			name = fmt.Sprintf("%s #%d", item.ItemType, *item.ItemID)
		}
		items = append(items, midtrans.ItemDetails{
			ID:    fmt.Sprintf("cart-line-%d", i),
			Name:  name,
			Price: int64(item.UnitPrice),
			Qty:   1,
		})
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  session.OrderID,
			GrossAmt: int64(total),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customerName,
			Email: customerEmail,
		},
		Items: &items,
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.midtransClient.CreateTransaction(session.OrderID, int64(total), req)
	if err != nil {
		return nil, err
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)
	updates := map[string]interface{}{
		"order_id":          session.OrderID,
		"payment_gateway":   models.PaymentGatewayMidtrans,
		"request_metadata":  json.RawMessage(reqBytes),
		"response_metadata": json.RawMessage(respBytes),
	}
	if err := s.db.Model(session).Updates(updates).Error; err != nil {
		return nil, err
	}

	return &InitiatePaymentResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		IsExisting:  false,
	}, nil
}

// InitiatePreBookingPayment creates a pre-booking row for a mock test and a
// matching Snap transaction tagged "prebook-".
func (s *PaymentService) InitiatePreBookingPayment(userID uint, test *models.MockTest, customerName, customerEmail, callbackURL string) (*models.PreBooking, *InitiatePaymentResult, error) {
	prebooking := models.PreBooking{
		UserID:         userID,
		MockTestID:     &test.ID,
		Amount:         test.Price,
		Status:         models.PurchaseStatusPending,
		PaymentStatus:  "pending",
		OrderID:        NewOrderID(OrderKindPreBooking),
		PaymentGateway: models.PaymentGatewayMidtrans,
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  prebooking.OrderID,
			GrossAmt: int64(test.Price),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customerName,
			Email: customerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("mock-test-%d", test.ID),
				Name:  fmt.Sprintf("Pre-booking: %s (%s)", test.Title, test.ScheduledAt.Format("2 Jan 2006")),
				Price: int64(test.Price),
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.midtransClient.CreateTransaction(prebooking.OrderID, int64(test.Price), req)
	if err != nil {
		return nil, nil, err
	}

	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)
	prebooking.RequestMetadata = reqBytes
	prebooking.ResponseMetadata = respBytes

	if err := s.db.Create(&prebooking).Error; err != nil {
		return nil, nil, err
	}

	return &prebooking, &InitiatePaymentResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}
