package payment

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type FailureCode struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
}

// SimConfig drives the simulated processor. It can be loaded from YAML:
//
//	timeout: 30s
//	min_latency: 200ms
//	max_latency: 1500ms
//	failure_rate: 0.1
//	failure_codes:
//	  CARD:
//	    - {code: CARD_DECLINED, message: "card was declined"}
type SimConfig struct {
	Timeout      time.Duration            `yaml:"timeout"`
	MinLatency   time.Duration            `yaml:"min_latency"`
	MaxLatency   time.Duration            `yaml:"max_latency"`
	FailureRate  float64                  `yaml:"failure_rate"`
	FailureCodes map[Method][]FailureCode `yaml:"failure_codes"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Timeout:     30 * time.Second,
		MinLatency:  200 * time.Millisecond,
		MaxLatency:  1500 * time.Millisecond,
		FailureRate: 0.1,
		FailureCodes: map[Method][]FailureCode{
			MethodCard: {
				{Code: "CARD_DECLINED", Message: "Your card was declined."},
				{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient funds on card."},
				{Code: "EXPIRED_CARD", Message: "Your card has expired."},
			},
			MethodGCash: {
				{Code: "GCASH_INSUFFICIENT_BALANCE", Message: "Insufficient GCash balance."},
				{Code: "GCASH_AUTH_FAILED", Message: "GCash authorization failed."},
			},
			MethodPayMaya: {
				{Code: "PAYMAYA_DECLINED", Message: "PayMaya payment was declined."},
				{Code: "PAYMAYA_OTP_FAILED", Message: "PayMaya OTP verification failed."},
			},
			MethodBankTransfer: {
				{Code: "BANK_UNAVAILABLE", Message: "The bank is temporarily unavailable."},
				{Code: "TRANSFER_REJECTED", Message: "The bank rejected the transfer."},
			},
		},
	}
}

// LoadSimConfig overlays the YAML file at path onto the defaults. An empty
// path returns the defaults.
func LoadSimConfig(path string) (SimConfig, error) {
	cfg := DefaultSimConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read payment config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse payment config: %w", err)
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	return cfg, nil
}

type Simulator struct {
	cfg SimConfig

	// overridable in tests
	float func() float64
	sleep func(time.Duration)
}

func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Simulator{cfg: cfg, float: rand.Float64, sleep: time.Sleep}
}

var _ Gateway = (*Simulator)(nil)

func (s *Simulator) Process(ctx context.Context, req Request) Result {
	if req.Method == MethodCOD {
		return Result{Success: true, Reference: reference(MethodCOD)}
	}

	// Buffered so an abandoned attempt can still finish and exit.
	done := make(chan Result, 1)
	go func() {
		s.sleep(s.latency())
		done <- s.outcome(req.Method)
	}()

	timer := time.NewTimer(s.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		return Result{Code: CodeGatewayError, Message: "payment gateway timed out"}
	case <-ctx.Done():
		return Result{Code: CodeGatewayError, Message: "payment request cancelled: " + ctx.Err().Error()}
	}
}

func (s *Simulator) Refund(_ context.Context, ref string, amount decimal.Decimal) Result {
	return Result{Success: true, Reference: "REFUND_" + ref, Message: "refunded " + amount.StringFixed(2)}
}

func (s *Simulator) latency() time.Duration {
	spread := s.cfg.MaxLatency - s.cfg.MinLatency
	if spread <= 0 {
		return s.cfg.MinLatency
	}
	return s.cfg.MinLatency + time.Duration(s.float()*float64(spread))
}

func (s *Simulator) outcome(m Method) Result {
	if s.float() >= s.cfg.FailureRate {
		return Result{Success: true, Reference: reference(m)}
	}
	codes := s.cfg.FailureCodes[m]
	if len(codes) == 0 {
		return Result{Code: "PAYMENT_DECLINED", Message: "payment was declined"}
	}
	fc := codes[int(s.float()*float64(len(codes)))%len(codes)]
	return Result{Code: fc.Code, Message: fc.Message}
}

func reference(m Method) string {
	return string(m) + "_" + uuid.NewString()
}
