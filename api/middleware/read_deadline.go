package middleware

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gin-gonic/gin"
)

type connKey struct{}

// ConnContext is meant for http.Server.ConnContext. It makes the raw
// connection available to ReadIdleTimeout.
func ConnContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, c)
}

func connFrom(ctx context.Context) net.Conn {
	c, _ := ctx.Value(connKey{}).(net.Conn)
	return c
}

// ReadIdleTimeout fails a body read that waits longer than idle for data.
// The deadline is pushed forward before every read, so a slow but steady
// upload is never cut off. Without ConnContext on the server it does nothing.
func ReadIdleTimeout(idle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn := connFrom(c.Request.Context())
		if conn == nil || idle <= 0 {
			c.Next()
			return
		}

		c.Request.Body = &idleBody{ReadCloser: c.Request.Body, conn: conn, idle: idle}
		defer conn.SetReadDeadline(time.Time{})
		c.Next()
	}
}

type idleBody struct {
	io.ReadCloser
	conn net.Conn
	idle time.Duration
}

func (b *idleBody) Read(p []byte) (int, error) {
	if err := b.conn.SetReadDeadline(time.Now().Add(b.idle)); err != nil {
		return 0, err
	}
	n, err := b.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) {
		b.conn.SetReadDeadline(time.Time{})
	}
	return n, err
}
