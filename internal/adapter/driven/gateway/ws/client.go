package ws

type Client interface {
	ID() string
	SendCall(event CallEvent) error
	Close() error
}
