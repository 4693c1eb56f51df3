package ordering

import (
	"context"

	"github.com/tableside/dinein/models"
	"github.com/tableside/dinein/store"
)

// StoreSubmitter writes orders directly through the gorm-backed store.
// Used in-process and by tests; browser clients go through the HTTP API
// which performs the same writes server-side.
type StoreSubmitter struct {
	Sessions *store.SessionStore
}

func (s StoreSubmitter) SubmitOrder(_ context.Context, token string, lines []store.CartLine, cust Customer, notes string) (*models.Order, error) {
	order, sess, err := s.Sessions.CreateOrder(token, lines, notes)
	if err != nil {
		return nil, err
	}
	// First order records the diner identity on the session.
	if sess.CustomerName == nil || *sess.CustomerName == "" {
		upd := store.SessionUpdate{CustomerName: &cust.Name, CustomerPhone: &cust.Phone}
		if err := s.Sessions.Update(sess.ID, upd); err != nil {
			return nil, err
		}
	}
	return order, nil
}
