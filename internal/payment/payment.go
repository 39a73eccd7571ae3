// Package payment is the seam to the external payment processor. The only
// implementation here is a simulator; a real integration keeps the Gateway
// contract: idempotency key in, reference or failure code out, bounded by a
// timeout.
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-market/internal/apperr"
)

type Method string

const (
	MethodCOD          Method = "COD"
	MethodCard         Method = "CARD"
	MethodGCash        Method = "GCASH"
	MethodPayMaya      Method = "PAYMAYA"
	MethodBankTransfer Method = "BANK_TRANSFER"
)

var methods = []Method{MethodCOD, MethodCard, MethodGCash, MethodPayMaya, MethodBankTransfer}

// ParseMethod accepts any casing of a supported method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range methods {
		if m == known {
			return m, nil
		}
	}
	return "", apperr.Invalid("unsupported payment method %q", s)
}

// CodeGatewayError is returned when the processor did not answer in time.
const CodeGatewayError = "GATEWAY_ERROR"

type Request struct {
	SessionID      string
	CustomerID     string
	Method         Method
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// Result is never accompanied by a Go error: declines and timeouts are
// reported through Success=false and Code.
type Result struct {
	Success   bool
	Reference string
	Code      string
	Message   string
}

// Err converts a failed result into *apperr.PaymentError, nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &apperr.PaymentError{Code: r.Code, Message: r.Message}
}

type Gateway interface {
	Process(ctx context.Context, req Request) Result
	Refund(ctx context.Context, reference string, amount decimal.Decimal) Result
}
