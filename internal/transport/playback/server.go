package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"replayline.ai/internal/persistence/seriesfile"
	"replayline.ai/internal/protocol"
	"replayline.ai/internal/timeline"
	"replayline.ai/internal/tuning"
)

type Server struct {
	src  Source
	tune tuning.Playback
	log  *log.Logger

	// AllowRemote serves non-loopback clients too.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64
}

func NewServer(src Source, tune tuning.Playback, logger *log.Logger) *Server {
	if tune.SendQueue <= 0 {
		tune.SendQueue = tuning.Defaults().Playback.SendQueue
	}
	if tune.WriteTimeout <= 0 {
		tune.WriteTimeout = tuning.Defaults().Playback.WriteTimeout
	}
	if tune.MaxSpeed <= 0 {
		tune.MaxSpeed = tuning.Defaults().Playback.MaxSpeed
	}
	return &Server{
		src:  src,
		tune: tune,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Stats reports the number of open playback connections and the total
// accepted since start.
func (s *Server) Stats() (active int64, total uint64) {
	return s.active.Load(), s.nextID.Load()
}

// ListHandler serves GET /v1/replays.
func (s *Server) ListHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		hs, err := s.src.List()
		if err != nil {
			writeJSONError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"replays": hs})
	}
}

// BootstrapHandler serves GET /v1/replays/{id}.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/replays/")
		f, err := s.src.Get(id)
		if errors.Is(err, ErrNotFound) {
			writeJSONError(rw, http.StatusNotFound, protocol.ErrNotFound, "unknown replay "+id)
			return
		}
		if err != nil {
			writeJSONError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
			return
		}
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			ReplayID:        f.Header.ReplayID,
			MapName:         f.Header.MapName,
			Interval:        f.Series.Interval,
			Duration:        f.Series.Duration,
			Frames:          len(f.Series.Snapshots),
			Players:         f.Series.Players,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

// subscription is a validated SUBSCRIBE bound to its replay.
type subscription struct {
	file  *seriesfile.FileV1
	from  int
	step  time.Duration
	pids  map[int]bool
	reqID string
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, code, err := s.resolve(msg)
		if err != nil {
			s.rejectAndClose(conn, code, err.Error())
			return
		}

		sid := fmt.Sprintf("P%d", s.nextID.Add(1))
		s.active.Add(1)
		defer s.active.Add(-1)
		if s.log != nil {
			s.log.Printf("playback %s: replay=%s from=%d step=%s", sid, sub.reqID, sub.from, sub.step)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, s.tune.SendQueue)
		subs := make(chan subscription, 1)

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(time.Duration(s.tune.WriteTimeout) * time.Millisecond))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()
		go s.pump(ctx, sub, subs, out)

		// Reader loop: allow SUBSCRIBE updates (seek, speed, replay switch).
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			next, code, err := s.resolve(msg)
			if err != nil {
				send(ctx, out, errorMsg(code, err.Error()))
				continue
			}
			// Latest request wins.
			select {
			case <-subs:
			default:
			}
			subs <- next
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("playback %s: closed", sid)
		}
	}
}

// pump emits frames for the current subscription at its cadence, then END.
// A new subscription restarts it from the requested position.
func (s *Server) pump(ctx context.Context, sub subscription, subs <-chan subscription, out chan<- []byte) {
	idx := sub.from
	done := false
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case next := <-subs:
			sub, idx, done = next, next.from, false
			resetTimer(timer, 0)
		case <-timer.C:
			if done {
				continue
			}
			snaps := sub.file.Series.Snapshots
			if idx >= len(snaps) {
				done = true
				if !send(ctx, out, mustJSON(protocol.EndMsg{
					Type:            protocol.TypeEnd,
					ProtocolVersion: protocol.Version,
					Frames:          len(snaps),
				})) {
					return
				}
				continue
			}
			if !send(ctx, out, mustJSON(frame(&sub.file.Series, idx, sub.pids))) {
				return
			}
			idx++
			timer.Reset(sub.step)
		}
	}
}

func (s *Server) resolve(msg []byte) (subscription, string, error) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return subscription{}, protocol.ErrProtoBadRequest, fmt.Errorf("bad subscribe")
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return subscription{}, protocol.ErrProtoBadRequest, fmt.Errorf("expected SUBSCRIBE")
	}
	f, err := s.src.Get(sub.ReplayID)
	if errors.Is(err, ErrNotFound) {
		return subscription{}, protocol.ErrNotFound, fmt.Errorf("unknown replay %q", sub.ReplayID)
	}
	if err != nil {
		return subscription{}, protocol.ErrInternal, err
	}

	speed := sub.Speed
	if speed <= 0 {
		speed = 1
	}
	if speed > s.tune.MaxSpeed {
		speed = s.tune.MaxSpeed
	}
	out := subscription{
		file:  f,
		step:  time.Duration(f.Series.Interval / speed * float64(time.Second)),
		reqID: sub.ReplayID,
	}
	if sub.FromS > 0 {
		if snap, ok := f.Series.At(sub.FromS); ok {
			out.from = int(snap.Timestamp/f.Series.Interval + 0.5)
		}
	}
	if len(sub.Players) > 0 {
		out.pids = make(map[int]bool, len(sub.Players))
		for _, pid := range sub.Players {
			out.pids[pid] = true
		}
	}
	return out, "", nil
}

func frame(series *timeline.Series, idx int, pids map[int]bool) protocol.FrameMsg {
	snap := series.Snapshots[idx]
	msg := protocol.FrameMsg{
		Type:            protocol.TypeFrame,
		ProtocolVersion: protocol.Version,
		Index:           idx,
		Timestamp:       snap.Timestamp,
		Players:         make(map[int]timeline.Roster, len(snap.Rosters)),
	}
	for i, r := range snap.Rosters {
		pid := series.Players[i].ID
		if pids != nil && !pids[pid] {
			continue
		}
		if r.Mobile == nil {
			r.Mobile = []timeline.EntityView{}
		}
		if r.Stationary == nil {
			r.Stationary = []timeline.EntityView{}
		}
		msg.Players[pid] = r
	}
	return msg
}

func (s *Server) rejectAndClose(conn *websocket.Conn, code, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, errorMsg(code, message))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func (s *Server) allowed(r *http.Request) bool {
	return s.AllowRemote || isLoopbackRemote(r.RemoteAddr)
}

func send(ctx context.Context, out chan<- []byte, b []byte) bool {
	select {
	case out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func errorMsg(code, message string) []byte {
	return mustJSON(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func writeJSONError(rw http.ResponseWriter, status int, code, message string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(map[string]string{"code": code, "message": message})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
