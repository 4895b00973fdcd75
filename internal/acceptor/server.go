// Package acceptor binds a listener, upgrades HTTP requests to WebSocket
// connections, and feeds the resulting frames into a router.Router. Every
// connection gets its own reader and writer goroutine; the router itself
// stays single-threaded, reached only through Router.Submit.
package acceptor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/archipelago-mw/aprs-server/internal/protocol"
	"github.com/archipelago-mw/aprs-server/internal/router"
	"github.com/archipelago-mw/aprs-server/internal/seed"
	"github.com/archipelago-mw/aprs-server/internal/session"
	"github.com/archipelago-mw/aprs-server/pkg/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Config bundles the listener address and the HTTP server's read and write
// timeouts; everything RoomInfo reports comes from router.Config and the
// loaded world.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server binds Config.Addr, upgrades every request on "/" to a WebSocket,
// and hands accepted connections to r.
type Server struct {
	cfg       Config
	world     *seed.MultiWorldRecord
	roomCfg   router.Config
	router    *router.Router
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New constructs a Server. roomCfg is the same router.Config the Router was
// built with; its RoomInfo-relevant fields are echoed to every connection.
func New(world *seed.MultiWorldRecord, r *router.Router, roomCfg router.Config, cfg Config) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		world:   world,
		roomCfg: roomCfg,
		router:  r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mx := mux.NewRouter()
	mx.HandleFunc("/", s.handleWS)

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mx,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// timeNow exists so a future clock injection doesn't have to touch every
// call site; today it's just time.Now.
func timeNow() time.Time { return time.Now() }

// Serve binds the listener and blocks until ctx is cancelled, then performs
// a graceful HTTP shutdown. Mirrors the teacher's net.Listen-then-Serve
// startup so a privileged port can be bound before any privilege drop.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("acceptor: listen %s: %w", s.cfg.Addr, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("acceptor: graceful shutdown: %v", err)
		}
	}()

	log.Infof("acceptor: listening at %s", s.cfg.Addr)
	err = s.httpSrv.Serve(listener)
	<-done
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("acceptor: serve: %w", err)
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("acceptor: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	writer := newWSWriter(conn)
	if err := writer.Send(s.roomInfo()); err != nil {
		log.Warnf("acceptor: could not send RoomInfo to %s: %v", r.RemoteAddr, err)
		conn.Close()
		return
	}

	sess := session.New(writer, r.RemoteAddr)
	sess.Accept()

	id := uuid.NewString()
	readDone := make(chan struct{})
	go writer.writePump(readDone)
	s.router.Submit(router.ClientAccepted{ID: id, Session: sess})

	s.readPump(id, conn, readDone)
}

// readPump owns every read from conn, translating frames into router
// events, until the connection errors or closes. The default gorilla
// ping/pong handlers are overridden only to report liveness to the router;
// they still answer pings exactly as the library default would.
func (s *Server) readPump(id string, conn *websocket.Conn, readDone chan<- struct{}) {
	defer func() {
		close(readDone)
		conn.Close()
		s.router.Submit(router.ClientDisconnected{ID: id})
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		s.router.Submit(router.ClientControl{ID: id, Control: protocol.ControlPing, Payload: []byte(appData)})
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			log.Warnf("acceptor: dropping malformed frame from %s: %v", id, err)
			continue
		}
		for _, m := range frame.Messages {
			s.router.Submit(router.ClientMessage{ID: id, Message: m})
		}
	}
}

// roomInfo renders the handshake-opening RoomInfo message from the loaded
// world and the router's own configuration.
func (s *Server) roomInfo() protocol.RoomInfo {
	games := make([]string, 0, len(s.world.DataPackage))
	checksums := make(map[string]string, len(s.world.DataPackage))
	for game, data := range s.world.DataPackage {
		games = append(games, game)
		checksums[game] = data.Checksum
	}

	return protocol.RoomInfo{
		Version:              s.roomCfg.ServerVersion,
		GeneratorVersion:     s.roomCfg.GeneratorVersion,
		Tags:                 s.roomCfg.Tags,
		Password:             s.roomCfg.RequiredPassword != nil,
		Permissions:          s.roomCfg.Permissions,
		HintCost:             s.roomCfg.HintCost,
		LocationCheckPoints:  s.roomCfg.LocationCheckPoints,
		Games:                games,
		DatapackageChecksums: checksums,
		SeedName:             s.world.SeedName,
		Time:                 float64(timeNow().Unix()),
	}
}
