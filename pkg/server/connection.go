package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	clog "github.com/vilterp/nltemplate/pkg/log"
	"github.com/vilterp/nltemplate/pkg/session"
)

type connectionID int

// connection runs one client's statements, in order, against its own
// session.
type connection struct {
	clientConn      *websocket.Conn
	id              connectionID
	server          *Server
	session         *session.Session
	nextStatementID int
	messages        chan *Reply
	context         context.Context
}

func newConnection(wsConn *websocket.Conn, s *Server, ID int) *connection {
	ctx := context.WithValue(s.ctx, clog.ConnIDKey, ID)
	conn := &connection{
		clientConn: wsConn,
		id:         connectionID(ID),
		server:     s,
		session:    session.New(ctx, s.store, s.metrics, s.sessOpts...),
		messages:   make(chan *Reply),
		context:    ctx,
	}
	go conn.writeMessagesToSocket()
	return conn
}

func (conn *connection) Ctx() context.Context {
	return conn.session.Ctx()
}

func (conn *connection) writeMessagesToSocket() {
	failed := false
	for msg := range conn.messages {
		if failed {
			continue
		}
		if err := conn.clientConn.WriteJSON(msg); err != nil {
			clog.Println(conn, "error writing to socket:", err)
			// unblocks the reader, which then closes messages
			conn.clientConn.Close()
			failed = true
		}
	}
}

func (conn *connection) handleStatements() {
	clog.Println(conn, "initiated from", conn.clientConn.RemoteAddr())
	defer close(conn.messages)
	for {
		_, message, readErr := conn.clientConn.ReadMessage()
		if readErr != nil {
			clog.Println(conn, "terminated:", readErr)
			conn.server.removeConn(conn)
			return
		}
		conn.messages <- conn.handleStatement(string(message))
	}
}

func (conn *connection) handleStatement(statement string) *Reply {
	reply := &Reply{StatementID: conn.nextStatementID}
	conn.nextStatementID++

	start := time.Now()
	result, err := conn.session.Exec(statement)
	conn.server.serverMets.statementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		clog.Printf(conn, "statement %d: %v", reply.StatementID, err)
		conn.server.serverMets.statements.WithLabelValues("error").Inc()
		msg := err.Error()
		reply.Error = &msg
		return reply
	}
	conn.server.serverMets.statements.WithLabelValues("ok").Inc()
	if result.Output != "" {
		reply.Output = &result.Output
	} else {
		reply.Ack = &result.Ack
	}
	return reply
}
