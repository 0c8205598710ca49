package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/gpellegrino/scanner-services/internal/scansvc/models"
)

// Feed pushes scan events to connected dashboard clients. Connections are
// write-only from the server's point of view; the dashboard never sends
// anything besides the close frame.
type Feed struct {
	connMap sync.Map // socketId -> *websocket.Conn
	writeMu sync.Map // socketId -> *sync.Mutex, gorilla allows one writer at a time
}

func NewFeed() *Feed {
	return &Feed{}
}

type frame struct {
	Event string           `json:"event"`
	Scan  models.ScanEvent `json:"scan"`
}

func (f *Feed) StoreConnection(socketId string, conn *websocket.Conn) {
	f.connMap.Store(socketId, conn)
	f.writeMu.Store(socketId, &sync.Mutex{})
	log.Infof("activity feed client connected: %s", socketId)
}

func (f *Feed) HandleDisconnect(socketId string) {
	f.connMap.Delete(socketId)
	f.writeMu.Delete(socketId)
	log.Infof("activity feed client disconnected: %s", socketId)
}

// Broadcast sends the event to every connected client, dropping clients
// whose write fails.
func (f *Feed) Broadcast(ev models.ScanEvent) {
	payload, err := json.Marshal(frame{Event: "scan", Scan: ev})
	if err != nil {
		log.Errorf("failed to marshal scan event for feed: %v", err)
		return
	}

	f.connMap.Range(func(key, value any) bool {
		socketId := key.(string)
		conn := value.(*websocket.Conn)

		muVal, ok := f.writeMu.Load(socketId)
		if !ok {
			return true
		}
		mu := muVal.(*sync.Mutex)

		mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		mu.Unlock()

		if err != nil {
			log.Warnf("dropping feed client %s: %v", socketId, err)
			conn.Close()
			f.HandleDisconnect(socketId)
		}
		return true
	})
}
