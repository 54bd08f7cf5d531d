package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	WebhooksReceived Counter
	WebhooksRejected Counter
	OrdersPlaced     Counter
	OrdersFailed     Counter
	OrdersSimulated  Counter
	PositionsClosed  Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		WebhooksReceived: n,
		WebhooksRejected: n,
		OrdersPlaced:     n,
		OrdersFailed:     n,
		OrdersSimulated:  n,
		PositionsClosed:  n,
	}
}
