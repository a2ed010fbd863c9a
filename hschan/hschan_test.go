package hschan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hotshot-consensus/hotshot/hschan"
)

func TestReqResp_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	reqCh := make(chan int)
	respCh := make(chan string, 1)

	go func() {
		req := <-reqCh
		respCh <- "got " + string(rune('0'+req))
	}()

	resp, ok := hschan.ReqResp(ctx, nil, reqCh, 5, respCh, "test")
	require.True(t, ok)
	require.Equal(t, "got 5", resp)
}

func TestReqResp_CanceledContextDuringSend(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered, no receiver: the send would block forever without ctx.
	reqCh := make(chan int)
	respCh := make(chan string, 1)

	_, ok := hschan.ReqResp(ctx, nil, reqCh, 1, respCh, "test")
	require.False(t, ok)
}

func TestReqResp_CanceledContextDuringReceive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	reqCh := make(chan int, 1)
	respCh := make(chan string) // never written to

	done := make(chan struct{})
	go func() {
		_, ok := hschan.ReqResp(ctx, nil, reqCh, 1, respCh, "test")
		require.False(t, ok)
		close(done)
	}()

	// Let the send succeed (reqCh is buffered), then cancel before any
	// response arrives.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReqResp did not return after context cancellation")
	}
}
