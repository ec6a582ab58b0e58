package overlaynet

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/meshroute/overlay/internal/routing"
)

// chain builds n nodes, connects i to i+1, and establishes an overlay edge
// along the same chain so the routing table's forwarding map has a path
// from the first to the last node.
func chain(t *testing.T, n int) []*Node {
	t.Helper()
	nodes := make([]*Node, n)
	for i := range nodes {
		nodes[i] = newTestNode(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < n-1; i++ {
		connectNodes(t, nodes[i], nodes[i+1])
		if err := nodes[i].ProposeEdge(ctx, nodes[i+1].Self()); err != nil {
			t.Fatalf("ProposeEdge(%d, %d): %v", i, i+1, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		allReady := true
		for _, node := range nodes {
			node.Table().Update()
			if len(node.Table().GetEdges()) < len(nodes)-1 {
				allReady = false
			}
		}
		if allReady {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nodes
}

func TestForwardRequestDeliversAcrossHops(t *testing.T) {
	nodes := chain(t, 3)
	first, last := nodes[0], nodes[2]

	delivered := make(chan []byte, 1)
	last.SetOnDeliver(func(payload []byte, fromHash bool, hash routing.MessageHash) {
		if fromHash {
			t.Error("request delivery should not be marked fromHash")
		}
		delivered <- payload
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := []byte("hello overlay")
	if _, err := first.SendRequest(ctx, last.Self(), payload); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	select {
	case got := <-delivered:
		if !bytes.Equal(got, payload) {
			t.Fatalf("delivered payload = %q, want %q", got, payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded request to be delivered")
	}
}

func TestForwardReplyRoutesBackAlongRequestPath(t *testing.T) {
	nodes := chain(t, 3)
	first, last := nodes[0], nodes[2]

	requestDelivered := make(chan routing.MessageHash, 1)
	last.SetOnDeliver(func(payload []byte, fromHash bool, hash routing.MessageHash) {
		requestDelivered <- hash
	})

	replyDelivered := make(chan []byte, 1)
	first.SetOnDeliver(func(payload []byte, fromHash bool, hash routing.MessageHash) {
		if !fromHash {
			t.Error("reply delivery should be marked fromHash")
		}
		replyDelivered <- payload
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := first.SendRequest(ctx, last.Self(), []byte("ping")); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	var hash routing.MessageHash
	select {
	case hash = <-requestDelivered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for request delivery")
	}

	replyPayload := []byte("pong")
	if err := last.SendReply(ctx, hash, replyPayload); err != nil {
		t.Fatalf("SendReply: %v", err)
	}

	select {
	case got := <-replyDelivered:
		if !bytes.Equal(got, replyPayload) {
			t.Fatalf("reply payload = %q, want %q", got, replyPayload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reply to route back")
	}
}

func TestForwardRequestFailsWithoutRoute(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	// a and b are never connected and no edge exists between them.

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := a.SendRequest(ctx, b.Self(), []byte("x")); err == nil {
		t.Fatal("expected error sending request with no route to target")
	}
}
