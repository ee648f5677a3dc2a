package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Handler is implemented by the supervisor; each method runs on the
// caller's goroutine (one per connection) and must be safe for
// concurrent use, since multiple clients may connect at once.
type Handler interface {
	Status() DaemonStatus
	Stop()
	LoadModel()
	UnloadModel()
	StartRecording()
	StopRecording()
	ToggleRecording()
	HistoryList(limit, offset int) ([]HistoryItem, int)
	ConfigGet(key string) (string, error)
	ConfigSet(key, value string) error
}

// Server listens on a Unix socket and serves one connection per
// client, framing requests and responses as newline-delimited JSON.
// Subscribed connections additionally receive pushed Events.
type Server struct {
	socketPath string
	handler    Handler
	version    string

	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextSubID   uint64

	listener net.Listener
}

type subscriber struct {
	events chan Event
	filter map[string]struct{} // empty = all events
}

// New creates a Server for socketPath. Serve removes a stale socket file
// left by an unclean prior shutdown before it binds.
func New(socketPath string, handler Handler, version string) *Server {
	return &Server{
		socketPath:  socketPath,
		handler:     handler,
		version:     version,
		subscribers: make(map[uint64]*subscriber),
	}
}

// Serve binds the socket and accepts connections until Close is called.
// It blocks; callers run it in its own goroutine.
func (s *Server) Serve() error {
	_ = os.Remove(s.socketPath)

	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("control: listen on %q: %w", s.socketPath, err)
	}
	s.listener = l
	log.Printf("control: listening on %s", s.socketPath)

	for {
		conn, err := l.Accept()
		if err != nil {
			return nil // listener closed
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

// Broadcast pushes event to every subscriber whose filter accepts it.
// Non-blocking: a subscriber whose channel is full drops the event
// rather than stalling the rest of the daemon.
func (s *Server) Broadcast(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		if !sub.accepts(event.Type) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			log.Printf("control: subscriber channel full, dropping %s event", event.Type)
		}
	}
}

func (sub *subscriber) accepts(eventType string) bool {
	if len(sub.filter) == 0 {
		return true
	}
	_, ok := sub.filter[eventType]
	return ok
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	var subID uint64
	var hasSub bool
	defer func() {
		if hasSub {
			s.mu.Lock()
			delete(s.subscribers, subID)
			s.mu.Unlock()
		}
	}()

	writeMu := &sync.Mutex{}
	writer := bufio.NewWriter(conn)

	writeLine := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		return writer.Flush()
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			_ = writeLine(errResponse(fmt.Sprintf("malformed request: %v", err)))
			continue
		}

		resp, subscribed, subEvents, subscriptionID := s.dispatch(cmd)
		if subscribed {
			hasSub = true
			subID = subscriptionID
			go func(events chan Event) {
				for ev := range events {
					if err := writeLine(ev); err != nil {
						return
					}
				}
			}(subEvents)
		}
		if err := writeLine(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(cmd Command) (resp Response, subscribed bool, events chan Event, subID uint64) {
	switch cmd.Cmd {
	case CmdStatus:
		return okResponse(s.handler.Status()), false, nil, 0

	case CmdStop:
		s.handler.Stop()
		return okResponse(nil), false, nil, 0

	case CmdLoadModel:
		s.handler.LoadModel()
		return okResponse(nil), false, nil, 0

	case CmdUnloadModel:
		s.handler.UnloadModel()
		return okResponse(nil), false, nil, 0

	case CmdStartRecording:
		s.handler.StartRecording()
		return okResponse(nil), false, nil, 0

	case CmdStopRecording:
		s.handler.StopRecording()
		return okResponse(nil), false, nil, 0

	case CmdToggleRecording:
		s.handler.ToggleRecording()
		return okResponse(nil), false, nil, 0

	case CmdSubscribe:
		id, ch := s.addSubscriber(cmd.Events)
		return okResponse(map[string]uint64{"subscription_id": id}), true, ch, id

	case CmdUnsubscribe:
		return okResponse(nil), false, nil, 0

	case CmdHistoryList:
		limit := cmd.Limit
		if limit <= 0 {
			limit = defaultHistoryLimit
		}
		items, total := s.handler.HistoryList(limit, cmd.Offset)
		return okResponse(map[string]any{"items": items, "total": total}), false, nil, 0

	case CmdConfigGet:
		value, err := s.handler.ConfigGet(cmd.Key)
		if err != nil {
			return errResponse(err.Error()), false, nil, 0
		}
		return okResponse(map[string]string{"value": value}), false, nil, 0

	case CmdConfigSet:
		if err := s.handler.ConfigSet(cmd.Key, cmd.Value); err != nil {
			return errResponse(err.Error()), false, nil, 0
		}
		return okResponse(nil), false, nil, 0

	case CmdPing:
		return okResponse(map[string]int64{"timestamp": nowMillis()}), false, nil, 0

	default:
		return errResponse(fmt.Sprintf("unknown command %q", cmd.Cmd)), false, nil, 0
	}
}

func (s *Server) addSubscriber(filter []string) (uint64, chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID

	filterSet := make(map[string]struct{}, len(filter))
	for _, f := range filter {
		filterSet[f] = struct{}{}
	}

	ch := make(chan Event, 32)
	s.subscribers[id] = &subscriber{events: ch, filter: filterSet}
	return id, ch
}
