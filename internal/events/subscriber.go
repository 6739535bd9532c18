package events

// Subscriber receives messages from the event bus.
type Subscriber interface {
	// Subscribe delivers messages for subject on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan Message, func(), error)
	Close() error
}
