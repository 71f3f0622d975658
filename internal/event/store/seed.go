package store

import (
	"context"
	"time"

	"stagepass/internal/event/models"
	id "stagepass/pkg/domain"
)

// SeedDemoEvent creates a demo concert with two tiers so a fresh dev server
// has something to register against.
func SeedDemoEvent(s *InMemory) *models.Event {
	now := time.Now().UTC()
	eventID := id.NewEventID()

	event, err := models.NewEvent(
		eventID,
		"STARLIGHT World Tour - Taipei Night 1",
		"Taipei Arena",
		now.Add(45*24*time.Hour),
		now.Add(-time.Hour),
		now.Add(14*24*time.Hour),
		[]models.TicketType{
			{
				ID:           id.NewTicketTypeID(),
				Name:         "VIP",
				PriceCents:   680000,
				Capacity:     200,
				MaxPerPerson: 2,
			},
			{
				ID:           id.NewTicketTypeID(),
				Name:         "General",
				PriceCents:   280000,
				Capacity:     2000,
				MaxPerPerson: 4,
			},
		},
		now,
	)
	if err != nil {
		// Seed data is static; a validation failure here is a programming error.
		panic(err)
	}
	_ = s.Create(context.Background(), event)
	return event
}
