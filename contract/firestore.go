package contract

// Message is a chat record as stored under a room path. Public room records
// carry the sender label, private room records carry the recipient.
type Message struct {
	ID          string `firestore:"-" json:"id" db:"id"`
	Text        string `firestore:"text" json:"text" db:"text" validate:"required"`
	SenderID    string `firestore:"from" json:"from" db:"sender_id" validate:"required"`
	SenderLabel string `firestore:"user,omitempty" json:"user,omitempty" db:"sender_label"`
	RecipientID string `firestore:"to,omitempty" json:"to,omitempty" db:"recipient_id"`
	Timestamp   int64  `firestore:"timestamp" json:"timestamp" db:"timestamp" validate:"gt=0"`
}
