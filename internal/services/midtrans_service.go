package services

import (
	"fmt"
	"os"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransService wraps the Snap (hosted checkout) and Core (status) clients.
// The Core client is what makes webhook handling trustworthy: every inbound
// callback is re-verified against CheckTransaction before anything settles.
type MidtransService struct {
	SnapClient snap.Client
	CoreClient coreapi.Client
}

func NewMidtransService() *MidtransService {
	serverKey := os.Getenv("MIDTRANS_SERVER_KEY")
	clientKey := os.Getenv("MIDTRANS_CLIENT_KEY")
	envStr := os.Getenv("MIDTRANS_IS_PRODUCTION")

	env := midtrans.Sandbox
	if envStr == "true" {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(serverKey, env)

	var c coreapi.Client
	c.New(serverKey, env)

	midtrans.ServerKey = serverKey
	midtrans.ClientKey = clientKey
	midtrans.Environment = env

	return &MidtransService{
		SnapClient: s,
		CoreClient: c,
	}
}

// CreateTransaction creates a Snap transaction and returns the token and
// redirect URL the client is sent to
func (s *MidtransService) CreateTransaction(orderID string, amount int64, param *snap.Request) (*snap.Response, error) {
	if param == nil {
		param = &snap.Request{
			TransactionDetails: midtrans.TransactionDetails{
				OrderID:  orderID,
				GrossAmt: amount,
			},
		}
	} else {
		if param.TransactionDetails.OrderID == "" {
			param.TransactionDetails.OrderID = orderID
		}
		if param.TransactionDetails.GrossAmt == 0 {
			param.TransactionDetails.GrossAmt = amount
		}
	}

	resp, merr := s.SnapClient.CreateTransaction(param)
	if merr != nil {
		return nil, fmt.Errorf("midtrans create transaction error: %v", merr)
	}
	return resp, nil
}

// CheckTransaction fetches the authoritative status of an order from
// Midtrans. This is the server-to-server verification step; the webhook
// payload itself is never trusted.
func (s *MidtransService) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, merr := s.CoreClient.CheckTransaction(orderID)
	if merr != nil {
		return nil, fmt.Errorf("midtrans check transaction error: %v", merr)
	}
	return resp, nil
}

// CancelTransaction cancels a pending transaction at the gateway
func (s *MidtransService) CancelTransaction(orderID string) error {
	_, merr := s.CoreClient.CancelTransaction(orderID)
	if merr != nil {
		return fmt.Errorf("midtrans cancel transaction error: %v", merr)
	}
	return nil
}
