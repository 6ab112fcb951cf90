package core

const (
	// WaitTime bounds request handling and graceful shutdown, in seconds.
	WaitTime = 10

	DefaultPort = 3000
)

type OrderParams struct {
	Port int
}
