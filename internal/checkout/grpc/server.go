package grpc

import (
	"context"

	checkoutv1 "github.com/dwikikusuma/shoping-market/api/checkout/v1"
	"github.com/dwikikusuma/shoping-market/internal/apperr"
	"github.com/dwikikusuma/shoping-market/internal/checkout/app"
	"github.com/dwikikusuma/shoping-market/internal/checkout/domain"
)

type Server struct {
	svc *app.Service
}

func NewServer(svc *app.Service) *Server {
	return &Server{svc: svc}
}

var _ checkoutv1.CheckoutServiceServer = (*Server)(nil)

func (s *Server) Initiate(ctx context.Context, req *checkoutv1.InitiateRequest) (*checkoutv1.Session, error) {
	sess, err := s.svc.Initiate(ctx, req.CustomerID, req.SelectedItemIDs, req.IdempotencyKey)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(sess), nil
}

func (s *Server) GetSession(ctx context.Context, req *checkoutv1.SessionRequest) (*checkoutv1.Session, error) {
	sess, err := s.svc.Get(ctx, req.SessionID, req.CustomerID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(sess), nil
}

func (s *Server) SetShippingInfo(ctx context.Context, req *checkoutv1.SetShippingInfoRequest) (*checkoutv1.Session, error) {
	info := domain.ShippingInfo{
		FullName:      req.ShippingInfo.FullName,
		Phone:         req.ShippingInfo.Phone,
		StreetAddress: req.ShippingInfo.StreetAddress,
		City:          req.ShippingInfo.City,
		PostalCode:    req.ShippingInfo.PostalCode,
		Province:      req.ShippingInfo.Province,
		Notes:         req.ShippingInfo.Notes,
	}
	sess, err := s.svc.SetShippingInfo(ctx, req.SessionID, req.CustomerID, info)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return ToProto(sess), nil
}

func (s *Server) Validate(ctx context.Context, req *checkoutv1.SessionRequest) (*checkoutv1.ValidateResponse, error) {
	changes, sess, err := s.svc.ValidateAndProceedToPayment(ctx, req.SessionID, req.CustomerID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}

	out := &checkoutv1.ValidateResponse{
		PriceChanges: make([]checkoutv1.PriceChange, 0, len(changes)),
		Session:      *ToProto(sess),
	}
	for _, c := range changes {
		out.PriceChanges = append(out.PriceChanges, checkoutv1.PriceChange{
			CartItemID:  c.CartItemID,
			ProductID:   c.ProductID,
			VariantID:   c.VariantID,
			ProductName: c.ProductName,
			OldPrice:    c.OldPrice.StringFixed(2),
			NewPrice:    c.NewPrice.StringFixed(2),
		})
	}
	return out, nil
}

// ProcessPayment reports gateway declines as an Aborted status carrying the
// gateway code; the session stays at the payment step.
func (s *Server) ProcessPayment(ctx context.Context, req *checkoutv1.ProcessPaymentRequest) (*checkoutv1.ProcessPaymentResponse, error) {
	attempt, err := s.svc.ProcessPayment(ctx, req.SessionID, req.CustomerID, req.PaymentMethod, req.IdempotencyKey)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &checkoutv1.ProcessPaymentResponse{
		Success:      attempt.Success,
		PaymentID:    attempt.Reference,
		Method:       attempt.Method,
		Amount:       attempt.Amount.StringFixed(2),
		ErrorCode:    attempt.ErrorCode,
		ErrorMessage: attempt.ErrorMessage,
	}, nil
}

func (s *Server) Complete(ctx context.Context, req *checkoutv1.CompleteRequest) (*checkoutv1.CompleteResponse, error) {
	orderID, err := s.svc.Complete(ctx, req.SessionID, req.CustomerID, req.PaymentID)
	if err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &checkoutv1.CompleteResponse{OrderID: orderID}, nil
}

func (s *Server) Cancel(ctx context.Context, req *checkoutv1.SessionRequest) (*checkoutv1.Empty, error) {
	if err := s.svc.Cancel(ctx, req.SessionID, req.CustomerID); err != nil {
		return nil, apperr.ToStatus(err)
	}
	return &checkoutv1.Empty{}, nil
}

func ToProto(sess domain.Session) *checkoutv1.Session {
	lines := make([]checkoutv1.LockedPrice, 0, len(sess.LockedPrices))
	for _, l := range sess.LockedPrices {
		lines = append(lines, checkoutv1.LockedPrice{
			CartItemID:  l.CartItemID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
			SellerID:    l.SellerID,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal().StringFixed(2),
		})
	}

	out := &checkoutv1.Session{
		ID:            sess.ID,
		CustomerID:    sess.CustomerID,
		CartItemIDs:   sess.CartItemIDs,
		LockedPrices:  lines,
		TotalAmount:   sess.TotalAmount.StringFixed(2),
		Step:          string(sess.Step),
		PaymentMethod: sess.PaymentMethod,
		PaymentID:     sess.PaymentID,
		OrderID:       sess.OrderID,
		Cancelled:     sess.Cancelled(),
		CreatedAtUnix: sess.CreatedAt.Unix(),
		ExpiresAtUnix: sess.ExpiresAt.Unix(),
	}
	if info := sess.ShippingInfo; info != nil {
		out.ShippingInfo = &checkoutv1.ShippingInfo{
			FullName:      info.FullName,
			Phone:         info.Phone,
			StreetAddress: info.StreetAddress,
			City:          info.City,
			PostalCode:    info.PostalCode,
			Province:      info.Province,
			Notes:         info.Notes,
		}
	}
	return out
}
