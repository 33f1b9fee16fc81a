package entities

// TicketStats are the aggregate counts of a guild's tickets.
type TicketStats struct {
	Total  int                `json:"total"`
	Open   int                `json:"open"`
	Closed int                `json:"closed"`
	ByType map[TicketType]int `json:"byType"`
}

// TallyTickets counts the tickets by status and type.
//
// Any status other than open is counted as closed so that Total == Open + Closed always holds.
func TallyTickets(tickets []*Ticket) *TicketStats {
	stats := &TicketStats{
		ByType: make(map[TicketType]int),
	}
	for _, t := range tickets {
		stats.Total++
		if t.IsOpen() {
			stats.Open++
		} else {
			stats.Closed++
		}
		stats.ByType[t.Type]++
	}
	return stats
}
