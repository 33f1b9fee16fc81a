package tickets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsCreated is the number of tickets created.
	TicketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_created_total",
			Help: "Number of tickets created",
		},
		[]string{"type"},
	)

	// TicketsClosed is the number of tickets closed.
	TicketsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_closed_total",
			Help: "Number of tickets closed",
		},
		[]string{"action"},
	)

	// TicketsRefused is the number of refused ticket operations.
	TicketsRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_refused_total",
			Help: "Number of refused ticket operations",
		},
		[]string{"operation", "code"},
	)

	// TicketIDCollisions is the number of drawn ticket IDs that were already taken.
	TicketIDCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_id_collisions_total",
			Help: "Number of drawn ticket IDs that were already taken",
		},
	)

	// PendingDeletions is the number of ticket channels waiting to be deleted.
	PendingDeletions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickets_pending_deletions",
			Help: "Number of ticket channels waiting to be deleted",
		},
	)

	// ChannelDeletions is the number of scheduled channel deletions by result.
	ChannelDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_channel_deletions_total",
			Help: "Number of scheduled channel deletions by result",
		},
		[]string{"result"},
	)
)
