package model

type Event struct {
	EventID     int    `json:"event_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	ImageURL    string `json:"imageUrl"`
}

// Ticket is server-owned and display-only; the client never constructs or
// mutates one.
type Ticket struct {
	TicketID    int    `json:"ticket_id"`
	EventID     int    `json:"event_id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	ImageURL    string `json:"imageUrl"`
	RowName     string `json:"rowName"`
	SeatNumber  int    `json:"seatNumber"`
	Barcode     string `json:"barcode"`
	PurchasedAt string `json:"purchasedAt"`
}
