package services

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// stallingMailer blocks until its context is done.
type stallingMailer struct {
	mu   sync.Mutex
	errs []error
}

func (m *stallingMailer) SendSetupLink(ctx context.Context, _, _ string) error {
	<-ctx.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, ctx.Err())
	return ctx.Err()
}

// stuckMailer ignores its context and blocks until release is closed.
type stuckMailer struct {
	release chan struct{}
}

func (m *stuckMailer) SendSetupLink(context.Context, string, string) error {
	<-m.release
	return nil
}

func TestNotificationServiceWait(t *testing.T) {
	m := &recordingMailer{}
	n := NewNotificationService(m, zap.NewNop())
	for i := 0; i < 5; i++ {
		n.SendSetupEmail("a@x.com", "tok")
	}
	require.NoError(t, n.Wait(context.Background()))
	assert.Len(t, m.all(), 5)
}

func TestNotificationServiceTimesOutSend(t *testing.T) {
	m := &stallingMailer{}
	n := NewNotificationService(m, zap.NewNop())
	n.timeout = 20 * time.Millisecond

	n.SendSetupEmail("a@x.com", "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.errs, 1)
	assert.ErrorIs(t, m.errs[0], context.DeadlineExceeded)
}

func TestNotificationServiceWaitIsBounded(t *testing.T) {
	m := &stuckMailer{release: make(chan struct{})}
	defer close(m.release)
	n := NewNotificationService(m, zap.NewNop())

	n.SendSetupEmail("a@x.com", "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, n.Wait(ctx), context.DeadlineExceeded)
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	// A server that accepts connections but never sends a greeting.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	defer func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "noreply@x.com", BaseURL: "https://app.example"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = m.SendSetupLink(ctx, "a@x.com", "tok")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestLogMailerKeepsTokenOutOfInfoLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewLogMailer(zap.New(core), "https://app.example")

	require.NoError(t, m.SendSetupLink(context.Background(), "a@x.com", "secret-token"))
	require.Equal(t, 1, logs.Len())
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "secret-token")
		}
	}

	debugCore, debugLogs := observer.New(zapcore.DebugLevel)
	m = NewLogMailer(zap.New(debugCore), "https://app.example")
	require.NoError(t, m.SendSetupLink(context.Background(), "a@x.com", "secret-token"))
	assert.Equal(t, 1, debugLogs.FilterField(zap.String("link", "https://app.example/set-password?token=secret-token")).Len())
}

func TestSetupLinkEscapesToken(t *testing.T) {
	assert.Equal(t, "https://app.example/set-password?token=a%2Bb", setupLink("https://app.example", "a+b"))
	assert.Contains(t, setupBody("https://app.example", "tok"), "https://app.example/set-password?token=tok")
}
