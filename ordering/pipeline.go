package ordering

import (
	"context"
	"errors"
	"sync"

	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/session"
	"github.com/tableside/dinein/store"
)

var (
	// ErrSubmitInFlight -> a previous submission has not returned yet
	ErrSubmitInFlight = errors.New("order submission already in progress")
	// ErrEmptyCart -> nothing to submit
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidPhone -> phone must be exactly 10 digits
	ErrInvalidPhone = errors.New("phone number must be 10 digits")
	// ErrMissingName -> customer name is required on first order
	ErrMissingName = errors.New("customer name is required")
)

// Customer identifies the diner placing an order.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Submitter writes an order against a session token. The server re-checks
// that the session is active at write time regardless of what the client
// believes.
type Submitter interface {
	SubmitOrder(ctx context.Context, token string, lines []store.CartLine, cust Customer, notes string) (*models.Order, error)
}

// Pipeline turns a cart into a persisted order tied to a verified active
// session. Submissions are single-flight: a second attempt while one is
// outstanding is rejected rather than queued, so double-clicks and slow
// networks cannot produce duplicate orders.
type Pipeline struct {
	resolver  *session.Resolver
	submitter Submitter

	mu       sync.Mutex
	inFlight bool
}

func NewPipeline(resolver *session.Resolver, submitter Submitter) *Pipeline {
	return &Pipeline{resolver: resolver, submitter: submitter}
}

// Submit validates the cart and customer identity, ensures a session
// exists (creating one inline when the device has none, so ordering never
// hard-fails just because the session was not yet established), and
// writes the order. On success the customer identity is cached for the
// rest of the dining session.
func (p *Pipeline) Submit(ctx context.Context, tableNumber string, lines []store.CartLine, cust Customer, notes string) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if cust.Name == "" {
		return nil, ErrMissingName
	}
	if !validPhone(cust.Phone) {
		return nil, ErrInvalidPhone
	}

	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	sess, err := p.resolver.Resolve(ctx, tableNumber)
	if err != nil {
		return nil, err
	}
	// Advisory fast-fail; the server re-verifies at write time.
	if sess.IsTerminal() {
		return nil, store.ErrSessionTerminal
	}

	order, err := p.submitter.SubmitOrder(ctx, sess.SessionToken, lines, cust, notes)
	if err != nil {
		return nil, err
	}

	p.resolver.RememberCustomer(cust.Name, cust.Phone)
	return order, nil
}

// validPhone -> fixed-length numeric, rejected before any network call
func validPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
