package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mpetrov/chessmatch/internal/match"
	"github.com/mpetrov/chessmatch/internal/obslog"
	"github.com/mpetrov/chessmatch/pkg/matchdto"
)

// Server terminates client websockets and translates wire frames into hub
// operations. It owns nothing else: membership, offers, and sessions live in
// the hub.
type Server struct {
	hub *match.Hub

	originPatterns []string
	queueSize      int
	writeTimeout   time.Duration
}

type Option func(*Server)

func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

func WithQueueSize(n int) Option {
	return func(s *Server) { s.queueSize = n }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) { s.writeTimeout = d }
}

func NewServer(hub *match.Hub, opts ...Option) *Server {
	s := &Server{
		hub:          hub,
		queueSize:    64,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler exposes the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.originPatterns,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := newWSConn(ws, s.queueSize)
	connID := s.hub.Join(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		<-c.stopped()
		cancel()
	}()
	go c.writeLoop(ctx, s.writeTimeout)

	defer func() {
		c.stop()
		s.hub.Leave(context.Background(), connID)
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		var frame matchdto.ClientFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			obslog.L().Debug("ws_read_end", zap.String("conn_id", connID), zap.Error(err))
			return
		}
		s.dispatch(ctx, connID, c, &frame)
	}
}

// dispatch routes one client frame into the hub. Validation failures go back
// to the sender as error frames; benign races are dropped silently per the
// coordinator's contract.
func (s *Server) dispatch(ctx context.Context, connID string, c *wsConn, frame *matchdto.ClientFrame) {
	switch frame.Type {
	case matchdto.TypeSetName:
		s.hub.SetName(connID, frame.Name)
	case matchdto.TypeRequestOfferList:
		c.Send(matchdto.ServerFrame{Type: matchdto.TypeOfferList, Offers: s.hub.ListOffers()})
	case matchdto.TypeCreateOffer:
		s.reply(c, connID, s.hub.CreateOffer(ctx, connID, frame.Name))
	case matchdto.TypeCloseOffer:
		s.reply(c, connID, s.hub.CloseOffer(frame.OfferID, connID))
	case matchdto.TypeJoinOffer:
		s.reply(c, connID, s.hub.JoinOffer(ctx, frame.OfferID, frame.Name, connID))
	case matchdto.TypeRelayAction:
		s.hub.RelayAction(frame.SessionID, frame.Action, connID)
	case matchdto.TypeReportCheckmate:
		s.reply(c, connID, s.hub.Terminate(ctx, frame.SessionID, match.Checkmate(connID)))
	case matchdto.TypeReportDraw:
		s.reply(c, connID, s.hub.Terminate(ctx, frame.SessionID, match.Draw()))
	case matchdto.TypeResign:
		s.reply(c, connID, s.hub.Terminate(ctx, frame.SessionID, match.Resignation(connID)))
	case matchdto.TypeOfferDraw:
		s.hub.OfferDraw(frame.SessionID, connID)
	default:
		c.Send(matchdto.ServerFrame{Type: matchdto.TypeError, Error: &matchdto.ErrorInfo{
			Code:    "unknown-type",
			Message: "unrecognized frame type: " + frame.Type,
		}})
	}
}

func (s *Server) reply(c *wsConn, connID string, err error) {
	if err == nil {
		return
	}
	info := errorInfo(err)
	if info == nil {
		// benign race with concurrent cleanup
		obslog.L().Debug("op_race_drop", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	obslog.L().Info("op_rejected", zap.String("conn_id", connID), zap.String("code", info.Code))
	c.Send(matchdto.ServerFrame{Type: matchdto.TypeError, Error: info})
}

func errorInfo(err error) *matchdto.ErrorInfo {
	switch {
	case errors.Is(err, match.ErrAlreadyOffering):
		return &matchdto.ErrorInfo{Code: "already-offering", Message: err.Error()}
	case errors.Is(err, match.ErrNotOwner):
		return &matchdto.ErrorInfo{Code: "not-owner", Message: err.Error()}
	case errors.Is(err, match.ErrSelfJoin):
		return &matchdto.ErrorInfo{Code: "self-join", Message: err.Error()}
	case errors.Is(err, match.ErrUnknownOffer), errors.Is(err, match.ErrUnknownConn):
		return nil
	default:
		return &matchdto.ErrorInfo{Code: "store-unavailable", Message: "temporary failure, try again", Retryable: true}
	}
}
