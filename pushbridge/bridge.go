// Package pushbridge implements the push platform over a websocket link to
// a local push distributor. Token requests are sent as request messages and
// tokens come back as events that are routed to the registrar callbacks.
package pushbridge

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNotListening is returned when trying to stop listening when there's no
	// valid listening connection set up
	ErrNotListening = errors.New("[textsecure-pushbridge] there is no listening connection to stop")
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 25 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	reconnectDelay = 2 * time.Second
)

// Callbacks receives the asynchronous platform deliveries, it is
// implemented by push.Registrar.
type Callbacks interface {
	DidRegisterUserNotificationSettings()
	DidReceiveStandardToken(token []byte)
	DidFailToReceiveStandardToken(err error)
	DidReceiveVoipToken(token []byte)
	DidInvalidateVoipToken()
}

// Conn is a wrapper for the websocket connection
type Conn struct {
	// The websocket connection
	ws *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte
}

// Bridge is a push.Platform backed by the push distributor.
type Bridge struct {
	url     string
	rootCAs *x509.CertPool
	send    chan []byte

	mu        sync.Mutex
	callbacks Callbacks
	wsconn    *Conn
	device    DeviceInfo
	voipToken []byte
	stopping  bool
}

// New returns a Bridge for the distributor at url. Requests issued before the
// link is up are queued.
func New(url string, rootCAs *x509.CertPool) *Bridge {
	return &Bridge{
		url:     url,
		rootCAs: rootCAs,
		send:    make(chan []byte, 256),
	}
}

// SetCallbacks installs the receiver of token events.
func (b *Bridge) SetCallbacks(c Callbacks) {
	b.mu.Lock()
	b.callbacks = c
	b.mu.Unlock()
}

func (b *Bridge) IsSimulator() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device.Simulator
}

func (b *Bridge) BackgroundRefreshDenied() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device.BackgroundRefreshDenied
}

func (b *Bridge) NotificationTypesDisabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.device.SettingsKnown && len(b.device.NotificationTypes) == 0
}

func (b *Bridge) RegisterUserNotificationSettings() {
	b.request(BridgeRequest_REGISTER_NOTIFICATION_SETTINGS)
}

func (b *Bridge) RegisterForRemoteNotifications() {
	b.request(BridgeRequest_REGISTER_REMOTE_NOTIFICATIONS)
}

func (b *Bridge) RegisterForVoipPush() {
	b.request(BridgeRequest_REGISTER_VOIP)
}

func (b *Bridge) PreRegisteredVoipToken() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voipToken
}

func (b *Bridge) request(typ BridgeRequestMessageType) {
	messageType := BridgeMessage_REQUEST
	msg := &BridgeMessage{
		Type:    &messageType,
		Request: &BridgeRequestMessage{Type: &typ},
	}
	m, err := json.Marshal(msg)
	if err != nil {
		log.Errorln("[textsecure-pushbridge] failed to marshal request", err)
		return
	}
	log.Debugln("[textsecure-pushbridge] queueing request", typ)
	b.send <- m
}

// Connect dials the distributor and starts the reader and writer goroutines.
// The returned channel is closed when the link goes down.
func (b *Bridge) Connect() (<-chan struct{}, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		TLSClientConfig: &tls.Config{
			RootCAs: b.rootCAs,
		},
	}
	log.Debugf("[textsecure-pushbridge] websocket connecting to %s", b.url)
	ws, _, err := d.Dial(b.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial push distributor")
	}
	log.Debugf("[textsecure-pushbridge] websocket connected successfully")

	c := &Conn{ws: ws, send: b.send}
	b.mu.Lock()
	b.wsconn = c
	b.mu.Unlock()

	closed := make(chan struct{})
	stopWriter := make(chan struct{})
	// Can only have a single goroutine call write methods
	go c.writeWorker(stopWriter)
	go func() {
		defer close(closed)
		defer close(stopWriter)
		err := b.readLoop(c)
		if err != nil {
			log.Debugln("[textsecure-pushbridge] link closed:", err)
		}
	}()
	return closed, nil
}

// StartListening keeps the link up, reconnecting until Stop is called.
func (b *Bridge) StartListening() {
	for {
		b.mu.Lock()
		stopping := b.stopping
		b.mu.Unlock()
		if stopping {
			return
		}
		closed, err := b.Connect()
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("[textsecure-pushbridge] Failed to start listening")
			time.Sleep(reconnectDelay)
			continue
		}
		<-closed
	}
}

// Stop disables the link and the reconnect loop.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	b.stopping = true
	c := b.wsconn
	b.mu.Unlock()
	if c == nil || c.ws == nil {
		return ErrNotListening
	}
	return c.ws.Close()
}

func (b *Bridge) readLoop(c *Conn) error {
	defer c.ws.Close()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, bmsg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("[textsecure-pushbridge] Websocket UnexpectedCloseError: %s", err)
			}
			return err
		}
		msg := &BridgeMessage{}
		if err := json.Unmarshal(bmsg, msg); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("[textsecure-pushbridge] Failed to unmarshal websocket message")
			continue
		}
		if msg.Type == nil || *msg.Type != BridgeMessage_EVENT || msg.Event == nil || msg.Event.Type == nil {
			log.Errorln("[textsecure-pushbridge] ignoring unexpected message", string(bmsg))
			continue
		}
		b.handleEvent(msg.Event)
	}
}

func (b *Bridge) handleEvent(ev *BridgeEventMessage) {
	log.Debugln("[textsecure-pushbridge] received event", *ev.Type)
	b.mu.Lock()
	cb := b.callbacks
	if *ev.Type == BridgeEvent_DEVICE_INFO && ev.Device != nil {
		b.device = *ev.Device
	}
	if *ev.Type == BridgeEvent_VOIP_TOKEN {
		b.voipToken = ev.Token
	}
	if *ev.Type == BridgeEvent_VOIP_TOKEN_INVALIDATED {
		b.voipToken = nil
	}
	b.mu.Unlock()

	if cb == nil {
		if *ev.Type != BridgeEvent_DEVICE_INFO {
			log.Errorln("[textsecure-pushbridge] no callbacks installed, dropping event", *ev.Type)
		}
		return
	}
	switch *ev.Type {
	case BridgeEvent_DEVICE_INFO:
	case BridgeEvent_NOTIFICATION_SETTINGS_REGISTERED:
		cb.DidRegisterUserNotificationSettings()
	case BridgeEvent_STANDARD_TOKEN:
		cb.DidReceiveStandardToken(ev.Token)
	case BridgeEvent_STANDARD_TOKEN_FAILED:
		cb.DidFailToReceiveStandardToken(errors.New(ev.Error))
	case BridgeEvent_VOIP_TOKEN:
		cb.DidReceiveVoipToken(ev.Token)
	case BridgeEvent_VOIP_TOKEN_INVALIDATED:
		cb.DidInvalidateVoipToken()
	default:
		log.Errorln("[textsecure-pushbridge] unknown event type", *ev.Type)
	}
}

// write writes a message with the given message type and payload.
func (c *Conn) write(mt int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(mt, payload)
}

// writeWorker writes messages to websocket connection
func (c *Conn) writeWorker(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		log.Debugf("[textsecure-pushbridge] closing writeWorker")
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case <-stop:
			return
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[textsecure-pushbridge] Failed to send websocket message")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Error("[textsecure-pushbridge] Failed to send websocket ping message")
				return
			}
		}
	}
}
