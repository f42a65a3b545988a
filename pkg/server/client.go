package server

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Client sends statements to a Server and waits for each reply.
type Client struct {
	WebSocketConn *websocket.Conn
	URL           string

	mu              sync.Mutex
	nextStatementID int
}

func NewClient(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", url)
	}
	return &Client{
		WebSocketConn: conn,
		URL:           url,
	}, nil
}

func (c *Client) Close() error {
	return c.WebSocketConn.Close()
}

// Statement sends one statement and returns the server's reply.
func (c *Client) Statement(statement string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextStatementID
	c.nextStatementID++
	if err := c.WebSocketConn.WriteMessage(websocket.TextMessage, []byte(statement)); err != nil {
		return nil, errors.Wrap(err, "sending statement")
	}
	reply := &Reply{}
	if err := c.WebSocketConn.ReadJSON(reply); err != nil {
		return nil, errors.Wrap(err, "reading reply")
	}
	if reply.StatementID != id {
		return nil, errors.Errorf("expected reply to statement %d; got %d", id, reply.StatementID)
	}
	return reply, nil
}

// Exec runs a statement and returns its ack or output.
func (c *Client) Exec(statement string) (string, error) {
	reply, err := c.Statement(statement)
	if err != nil {
		return "", err
	}
	switch {
	case reply.Error != nil:
		return "", errors.New(*reply.Error)
	case reply.Output != nil:
		return *reply.Output, nil
	case reply.Ack != nil:
		return *reply.Ack, nil
	}
	return "", errors.New("reply neither error, output nor ack")
}
