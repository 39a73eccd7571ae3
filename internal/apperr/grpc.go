package apperr

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Reasons attached to gRPC statuses so the gateway can tell apart kinds
// sharing a gRPC code.
const (
	ReasonInvalidArgument   = "INVALID_ARGUMENT"
	ReasonNotFound          = "NOT_FOUND"
	ReasonForbidden         = "FORBIDDEN"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonSessionExpired    = "SESSION_EXPIRED"
	ReasonPaymentFailed     = "PAYMENT_FAILED"
	ReasonInvalidState      = "INVALID_STATE"
	ReasonConflict          = "CONFLICT"

	errorDomain = "shoping-market"
)

// ToStatus converts a service error into a gRPC status error. Unknown errors
// become codes.Internal without leaking their text.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isAppErr(err) {
		return err
	}

	var (
		code     codes.Code
		reason   string
		metadata map[string]string
	)

	var stockErr *StockError
	var payErr *PaymentError
	switch {
	case errors.As(err, &stockErr):
		code, reason = codes.FailedPrecondition, ReasonInsufficientStock
		metadata = map[string]string{"product_id": stockErr.ProductID, "variant_id": stockErr.VariantID}
	case errors.As(err, &payErr):
		code, reason = codes.Aborted, ReasonPaymentFailed
		metadata = map[string]string{"gateway_code": payErr.Code}
	case errors.Is(err, ErrInvalidArgument):
		code, reason = codes.InvalidArgument, ReasonInvalidArgument
	case errors.Is(err, ErrNotFound):
		code, reason = codes.NotFound, ReasonNotFound
	case errors.Is(err, ErrForbidden):
		code, reason = codes.PermissionDenied, ReasonForbidden
	case errors.Is(err, ErrInsufficientStock):
		code, reason = codes.FailedPrecondition, ReasonInsufficientStock
	case errors.Is(err, ErrSessionExpired):
		code, reason = codes.FailedPrecondition, ReasonSessionExpired
	case errors.Is(err, ErrPaymentFailed):
		code, reason = codes.Aborted, ReasonPaymentFailed
	case errors.Is(err, ErrInvalidState):
		code, reason = codes.FailedPrecondition, ReasonInvalidState
	case errors.Is(err, ErrConflict):
		code, reason = codes.AlreadyExists, ReasonConflict
	default:
		return status.Error(codes.Internal, "internal error")
	}

	st := status.New(code, err.Error())
	withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   errorDomain,
		Metadata: metadata,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// Reason extracts the ErrorInfo reason from a gRPC status error, if any.
func Reason(err error) (string, map[string]string) {
	st, ok := status.FromError(err)
	if !ok {
		return "", nil
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason(), info.GetMetadata()
		}
	}
	return "", nil
}

func isAppErr(err error) bool {
	for _, target := range []error{
		ErrInvalidArgument, ErrNotFound, ErrForbidden, ErrInsufficientStock,
		ErrSessionExpired, ErrPaymentFailed, ErrInvalidState, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// FromStatus maps a gRPC status error produced by ToStatus back onto the
// sentinel errors so remote callers can use errors.Is.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	reason, md := Reason(err)
	var target error
	switch reason {
	case ReasonInvalidArgument:
		target = ErrInvalidArgument
	case ReasonNotFound:
		target = ErrNotFound
	case ReasonForbidden:
		target = ErrForbidden
	case ReasonInsufficientStock:
		return &remoteStockError{msg: st.Message(), productID: md["product_id"]}
	case ReasonSessionExpired:
		target = ErrSessionExpired
	case ReasonPaymentFailed:
		return &PaymentError{Code: md["gateway_code"], Message: st.Message()}
	case ReasonInvalidState:
		target = ErrInvalidState
	case ReasonConflict:
		target = ErrConflict
	default:
		return err
	}
	return &remoteError{target: target, msg: st.Message()}
}

type remoteError struct {
	target error
	msg    string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.target }

type remoteStockError struct {
	msg       string
	productID string
}

func (e *remoteStockError) Error() string { return e.msg }
func (e *remoteStockError) Unwrap() error { return ErrInsufficientStock }
