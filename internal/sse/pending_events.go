package sse

import (
	"context"
	"sync"

	"ms-reservations/internal/models"
)

// PendingEventEmitter broadcasts newly created pending reservations to
// subscribed staff dashboards, keyed by hotel. The customer flow never
// subscribes here; it observes status changes by polling only.
type PendingEventEmitter struct {
	hotelClients map[string][]chan models.Reservation
	clientMutex  sync.RWMutex
}

func NewPendingEventEmitter() *PendingEventEmitter {
	return &PendingEventEmitter{
		hotelClients: make(map[string][]chan models.Reservation),
	}
}

// SubscribeToHotel adds a staff client to a hotel's pending-reservation
// feed. The client is removed when its context is done.
func (e *PendingEventEmitter) SubscribeToHotel(ctx context.Context, hotelID string) chan models.Reservation {
	clientChan := make(chan models.Reservation, 10)

	e.clientMutex.Lock()
	e.hotelClients[hotelID] = append(e.hotelClients[hotelID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(hotelID, clientChan)
	}()

	return clientChan
}

// EmitPending broadcasts a new pending reservation to the hotel's
// subscribers. Sends are non-blocking; a slow client misses the event
// rather than stalling the emitter.
func (e *PendingEventEmitter) EmitPending(reservation models.Reservation) {
	e.clientMutex.RLock()
	clients := e.hotelClients[reservation.HotelID]
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- reservation:
		default:
		}
	}
}

func (e *PendingEventEmitter) removeClient(hotelID string, clientChan chan models.Reservation) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.hotelClients[hotelID]
	for i, ch := range clients {
		if ch == clientChan {
			e.hotelClients[hotelID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.hotelClients[hotelID]) == 0 {
		delete(e.hotelClients, hotelID)
	}
}
