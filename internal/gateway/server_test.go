package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpetrov/chessmatch/internal/match"
	"github.com/mpetrov/chessmatch/internal/records"
	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

func newTestServer(t *testing.T) (*httptest.Server, *records.MemoryStore) {
	t.Helper()
	store := records.NewMemoryStore()
	hub := match.NewHub(store)
	srv := httptest.NewServer(NewServer(hub).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

type testClient struct {
	ws *websocket.Conn
}

func dialClient(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1) + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "") })
	return &testClient{ws: ws}
}

func (c *testClient) send(t *testing.T, frame matchdto.ClientFrame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.ws, frame); err != nil {
		t.Fatalf("write %s: %v", frame.Type, err)
	}
}

// recvType reads frames until one of the wanted type arrives, skipping
// interleaved broadcasts.
func (c *testClient) recvType(t *testing.T, typ string) matchdto.ServerFrame {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithDeadline(context.Background(), deadline)
		var frame matchdto.ServerFrame
		err := wsjson.Read(ctx, c.ws, &frame)
		cancel()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		if frame.Type == typ {
			return frame
		}
	}
	t.Fatalf("no %s frame within deadline", typ)
	return matchdto.ServerFrame{}
}

func TestFullMatchOverWebsocket(t *testing.T) {
	srv, store := newTestServer(t)
	alice := dialClient(t, srv)
	bob := dialClient(t, srv)

	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeRequestOfferList})
	if list := alice.recvType(t, matchdto.TypeOfferList); len(list.Offers) != 0 {
		t.Fatalf("initial offer list not empty: %+v", list.Offers)
	}
	// round-trip bob once so he is registered before the broadcast below
	bob.send(t, matchdto.ClientFrame{Type: matchdto.TypeRequestOfferList})
	bob.recvType(t, matchdto.TypeOfferList)

	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeCreateOffer, Name: "alice"})
	cast := bob.recvType(t, matchdto.TypeOfferListUpdated)
	if len(cast.Offers) != 1 || cast.Offers[0].Creator != "alice" {
		t.Fatalf("broadcast offers = %+v", cast.Offers)
	}

	bob.send(t, matchdto.ClientFrame{Type: matchdto.TypeJoinOffer, OfferID: cast.Offers[0].ID, Name: "bob"})
	aStart := alice.recvType(t, matchdto.TypeSessionStarted).Session
	bStart := bob.recvType(t, matchdto.TypeSessionStarted).Session
	if aStart.SessionID != bStart.SessionID {
		t.Fatalf("session ids differ")
	}
	if aStart.Color == bStart.Color {
		t.Fatalf("colors not complementary: %q / %q", aStart.Color, bStart.Color)
	}

	alice.send(t, matchdto.ClientFrame{
		Type:      matchdto.TypeRelayAction,
		SessionID: aStart.SessionID,
		Action:    json.RawMessage(`{"from":"e2","to":"e4"}`),
	})
	relayed := bob.recvType(t, matchdto.TypeActionRelayed)
	if string(relayed.Action) != `{"from":"e2","to":"e4"}` {
		t.Fatalf("relayed action = %s", relayed.Action)
	}

	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeOfferDraw, SessionID: aStart.SessionID})
	bob.recvType(t, matchdto.TypeOpponentDrawOffered)

	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeReportCheckmate, SessionID: aStart.SessionID})
	aEnd := alice.recvType(t, matchdto.TypeSessionEnded).End
	bEnd := bob.recvType(t, matchdto.TypeSessionEnded).End
	if aEnd.Cause != matchdto.CauseCheckmate || aEnd.Winner != "alice" || bEnd.Winner != "alice" {
		t.Fatalf("session end frames: %+v / %+v", aEnd, bEnd)
	}

	rec, err := store.Get(context.Background(), "alice")
	if err != nil || rec.Wins != 1 {
		t.Fatalf("alice record = %+v (%v), want 1 win", rec, err)
	}
}

func TestValidationErrorSurfaced(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dialClient(t, srv)

	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeCreateOffer, Name: "alice"})
	alice.send(t, matchdto.ClientFrame{Type: matchdto.TypeCreateOffer, Name: "alice"})

	frame := alice.recvType(t, matchdto.TypeError)
	if frame.Error == nil || frame.Error.Code != "already-offering" {
		t.Fatalf("error frame = %+v, want already-offering", frame.Error)
	}
}

func TestWriterPreservesEnqueueOrder(t *testing.T) {
	const n = 50
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := newWSConn(ws, n)
		go c.writeLoop(r.Context(), 5*time.Second)
		for i := 0; i < n; i++ {
			c.Send(matchdto.ServerFrame{
				Type:   matchdto.TypeActionRelayed,
				Action: json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)),
			})
		}
		<-done
		c.Close()
	}))
	t.Cleanup(srv.Close)

	client := dialClient(t, srv)
	defer close(done)
	for i := 0; i < n; i++ {
		frame := client.recvType(t, matchdto.TypeActionRelayed)
		var payload struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(frame.Action, &payload); err != nil {
			t.Fatalf("action payload: %v", err)
		}
		if payload.Seq != i {
			t.Fatalf("frame %d arrived with seq %d, order not preserved", i, payload.Seq)
		}
	}
}

func TestDisconnectClosesOffer(t *testing.T) {
	srv, _ := newTestServer(t)
	host := dialClient(t, srv)
	watcher := dialClient(t, srv)
	watcher.send(t, matchdto.ClientFrame{Type: matchdto.TypeRequestOfferList})
	watcher.recvType(t, matchdto.TypeOfferList)

	host.send(t, matchdto.ClientFrame{Type: matchdto.TypeCreateOffer, Name: "alice"})
	cast := watcher.recvType(t, matchdto.TypeOfferListUpdated)
	if len(cast.Offers) != 1 {
		t.Fatalf("offer not visible: %+v", cast.Offers)
	}

	_ = host.ws.Close(websocket.StatusNormalClosure, "")
	cast = watcher.recvType(t, matchdto.TypeOfferListUpdated)
	if len(cast.Offers) != 0 {
		t.Fatalf("offer survived host disconnect: %+v", cast.Offers)
	}
}
