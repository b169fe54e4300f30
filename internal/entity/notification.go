package entity

// Notification is a rendered customer message ready for a transport.
type Notification struct {
	To      string
	Subject string
	Body    string
}
