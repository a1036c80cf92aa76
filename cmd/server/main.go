package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/kevinxiao27/docweave/internal/presencehub"
	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/document"
)

var log = logrus.New()

// config is the shape of the server's YAML config (spec ambient stack:
// viper-driven configuration, same nested-struct-plus-mapstructure pattern
// the rest of the pack's services use).
type config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Presence struct {
		TTLSeconds int `mapstructure:"ttlSeconds"`
	} `mapstructure:"presence"`
}

func loadConfig() (*config, error) {
	v := viper.New()
	v.SetConfigName("docweave")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("presence.ttlSeconds", 30)
	v.SetEnvPrefix("DOCWEAVE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
		log.Warn("no docweave.yaml found, using defaults and environment")
	}

	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// room is one document's live connection set.
type room struct {
	doc     *document.Document
	clients map[*websocket.Conn]actor.ID
}

// server fans a push/pull ChangePack protocol out over WebSocket
// connections, one room per document key, with presence tracked in Redis
// via presencehub so multiple server instances can share a roster.
type server struct {
	mu    sync.Mutex
	rooms map[string]*room

	hub         *presencehub.Hub
	presenceTTL time.Duration
	upgrader    websocket.Upgrader
}

func newServer(hub *presencehub.Hub, presenceTTL time.Duration) *server {
	return &server{
		rooms:       make(map[string]*room),
		hub:         hub,
		presenceTTL: presenceTTL,
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *server) getRoom(key string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[key]; ok {
		return r
	}
	r := &room{doc: document.New(key, actor.New()), clients: make(map[*websocket.Conn]actor.ID)}
	s.rooms[key] = r
	return r
}

func parseOrMintActor(r *http.Request) actor.ID {
	raw := r.URL.Query().Get("actor")
	if raw == "" {
		return actor.New()
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return actor.New()
	}
	id, err := actor.FromBytes(decoded)
	if err != nil {
		return actor.New()
	}
	return id
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	docKey := r.URL.Query().Get("doc")
	if docKey == "" {
		http.Error(w, "missing doc query parameter", http.StatusBadRequest)
		return
	}
	actorID := parseOrMintActor(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("server: websocket upgrade failed")
		return
	}
	defer conn.Close()

	rm := s.getRoom(docKey)

	s.mu.Lock()
	rm.clients[conn] = actorID
	s.mu.Unlock()

	ctx := r.Context()
	if s.hub != nil {
		if err := s.hub.Join(ctx, docKey, actorID, s.presenceTTL); err != nil {
			log.WithError(err).Warn("server: presence join failed")
		}
		stopRefresh := make(chan struct{})
		go s.refreshPresence(ctx, docKey, actorID, stopRefresh)
		defer close(stopRefresh)
		defer func() {
			if err := s.hub.Leave(ctx, docKey, actorID); err != nil {
				log.WithError(err).Warn("server: presence leave failed")
			}
		}()
	}

	log.WithFields(logrus.Fields{"doc": docKey, "actor": actorID.String()}).Info("server: client connected")

	if err := s.sendSnapshot(conn, rm); err != nil {
		log.WithError(err).Warn("server: failed to send initial snapshot")
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleIncomingPack(conn, rm, docKey, raw)
	}

	s.mu.Lock()
	delete(rm.clients, conn)
	s.mu.Unlock()
	log.WithFields(logrus.Fields{"doc": docKey, "actor": actorID.String()}).Info("server: client disconnected")
}

// refreshPresence re-joins the roster at half the TTL so a connection that
// outlives one TTL window doesn't get swept as stale.
func (s *server) refreshPresence(ctx context.Context, docKey string, actorID actor.ID, stop <-chan struct{}) {
	ticker := time.NewTicker(s.presenceTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.hub.Join(ctx, docKey, actorID, s.presenceTTL); err != nil {
				log.WithError(err).Debug("server: presence refresh failed")
			}
		}
	}
}

func (s *server) sendSnapshot(conn *websocket.Conn, rm *room) error {
	snap, err := rm.doc.Snapshot()
	if err != nil {
		return err
	}
	raw, err := document.EncodeChangePack(document.ChangePack{DocumentKey: rm.doc.Key(), Snapshot: snap})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *server) handleIncomingPack(sender *websocket.Conn, rm *room, docKey string, raw []byte) {
	pack, err := document.DecodeChangePack(raw)
	if err != nil {
		log.WithError(err).Warn("server: rejecting malformed change pack")
		return
	}
	if err := rm.doc.ApplyChangePack(pack); err != nil {
		log.WithError(err).Warn("server: failed to apply change pack")
		return
	}

	s.mu.Lock()
	peers := make([]*websocket.Conn, 0, len(rm.clients))
	for c := range rm.clients {
		if c != sender {
			peers = append(peers, c)
		}
	}
	s.mu.Unlock()

	outgoing, err := document.EncodeChangePack(pack)
	if err != nil {
		log.WithError(err).Warn("server: failed to re-encode change pack for broadcast")
		return
	}
	for _, c := range peers {
		if err := c.WriteMessage(websocket.TextMessage, outgoing); err != nil {
			log.WithError(err).Debug("server: broadcast write failed, client will be reaped on next read")
		}
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("server: failed to load config")
	}

	var hub *presencehub.Hub
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("server: redis unavailable, presence fan-out disabled")
	} else {
		hub = presencehub.NewHub(rdb)
	}

	srv := newServer(hub, time.Duration(cfg.Presence.TTLSeconds)*time.Second)

	r := mux.NewRouter()
	r.HandleFunc("/ws", srv.handleWebSocket)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	log.WithField("addr", addr).Info("server: listening")
	log.Fatal(http.ListenAndServe(addr, r))
}
