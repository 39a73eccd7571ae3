package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCheckoutCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckout(reg)

	m.Payment("COD", "success")
	m.Payment("COD", "success")
	m.Order("insufficient_stock")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments.WithLabelValues("COD", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("insufficient_stock")))
}

func TestNilReceiversAreNoops(t *testing.T) {
	var c *Checkout
	c.Session("initiated")
	var s *ServerMetrics
	s.Observe("cart", 200, time.Now())
}
