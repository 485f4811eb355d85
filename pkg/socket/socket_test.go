package socket

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func listen(t *testing.T) *Listener {
	t.Helper()
	l, err := ListenLoopback(0, 10, Options{})
	if err != nil {
		t.Fatalf("ListenLoopback() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func dial(t *testing.T, l *Listener) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(l.Port()))))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func acceptOne(t *testing.T, l *Listener) *Conn {
	t.Helper()
	var conn *Conn
	eventually(t, "accept", func() bool {
		c, ok := l.Accept()
		conn = c
		return ok
	})
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAcceptIsNonBlocking(t *testing.T) {
	l := listen(t)

	start := time.Now()
	if c, ok := l.Accept(); ok || c != nil {
		t.Fatal("Accept() returned a connection with nothing pending")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Accept() blocked")
	}
	if l.Port() == 0 {
		t.Error("Port() = 0 after binding port 0")
	}
	if err := l.Listen(10); err != nil {
		t.Errorf("Listen() error = %v", err)
	}
}

func TestRecvAndSend(t *testing.T) {
	l := listen(t)
	client := dial(t, l)
	conn := acceptOne(t, l)

	buf := make([]byte, 16)
	if n, err := conn.Recv(buf); n != 0 || err != nil {
		t.Fatalf("Recv() with no data = %d, %v", n, err)
	}

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	var got []byte
	eventually(t, "data", func() bool {
		n, err := conn.Recv(buf)
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		got = append(got, buf[:n]...)
		return len(got) == 5
	})
	if string(got) != "hello" {
		t.Errorf("Recv() = %q, want hello", got)
	}

	if err := conn.Send([]byte("world")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	reply := make([]byte, 5)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(client, reply); err != nil {
		t.Fatalf("client read error = %v", err)
	}
	if string(reply) != "world" {
		t.Errorf("client got %q, want world", reply)
	}
}

func TestRecvSmallBuffer(t *testing.T) {
	l := listen(t)
	client := dial(t, l)
	conn := acceptOne(t, l)

	client.Write([]byte("abcdef"))

	var got []byte
	buf := make([]byte, 2)
	eventually(t, "data", func() bool {
		n, _ := conn.Recv(buf)
		got = append(got, buf[:n]...)
		return len(got) == 6
	})
	if !bytes.Equal(got, []byte("abcdef")) {
		t.Errorf("got %q", got)
	}
}

func TestPeerCloseLatchesError(t *testing.T) {
	l := listen(t)
	client := dial(t, l)
	conn := acceptOne(t, l)

	client.Write([]byte("bye"))
	client.Close()

	var got []byte
	buf := make([]byte, 16)
	eventually(t, "error", func() bool {
		n, _ := conn.Recv(buf)
		got = append(got, buf[:n]...)
		return conn.ConnectionError()
	})
	if string(got) != "bye" {
		t.Errorf("data before close = %q, want bye", got)
	}
	if !errors.Is(conn.Err(), io.EOF) {
		t.Errorf("Err() = %v, want io.EOF", conn.Err())
	}
	if err := conn.Send([]byte("x")); err == nil {
		t.Error("Send() after peer close succeeded")
	}
}

func TestLocalClose(t *testing.T) {
	l := listen(t)
	client := dial(t, l)
	conn := acceptOne(t, l)

	conn.Close()
	if !conn.ConnectionError() {
		t.Error("ConnectionError() = false after Close")
	}
	if !errors.Is(conn.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", conn.Err())
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if n, err := client.Read(make([]byte, 1)); n != 0 || err == nil {
		t.Errorf("client read after close = %d, %v", n, err)
	}
}

func TestListenerClose(t *testing.T) {
	l, err := ListenLoopback(0, 10, Options{})
	if err != nil {
		t.Fatal(err)
	}
	port := l.Port()

	if _, err := ListenLoopback(port, 10, Options{}); err == nil {
		t.Error("second bind on the same port succeeded")
	}

	l.Close()
	l.Close()
	if !l.ConnectionError() {
		t.Error("ConnectionError() = false after Close")
	}

	again, err := ListenLoopback(port, 10, Options{})
	if err != nil {
		t.Fatalf("rebind after Close error = %v", err)
	}
	again.Close()
}
