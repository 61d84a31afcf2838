package hud

import (
	"context"
	"encoding/json"
	"errors"
	log "log/slog"
	"time"

	ws "github.com/gorilla/websocket"

	"optimus/internal/lang"
	"optimus/internal/session"
)

const (
	KindStatus  = "status"
	KindTrigger = "trigger"
	KindLang    = "lang"

	shard = "optimus"
)

// Message is one JSON frame exchanged with the HUD.
type Message struct {
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"`
	Language string `json:"lang,omitempty"`
	Theme    *Theme `json:"theme,omitempty"`
}

// StatusMessage renders a snapshot as a status frame.
func StatusMessage(s session.Snapshot) Message {
	th := ThemeFor(s.Status, s.Language)
	return Message{
		From:     shard,
		To:       "hud",
		Kind:     KindStatus,
		Content:  s.Status.String(),
		Language: s.Language.String(),
		Theme:    &th,
	}
}

// Controller is the part of the session controller the HUD drives.
type Controller interface {
	Trigger() bool
	SetLanguage(mode lang.Mode)
	Watch() <-chan session.Snapshot
}

// Feed keeps a websocket to the HUD open: status changes go out, button
// presses come in.
type Feed struct {
	url       string
	reconnect time.Duration
	ctrl      Controller
	dialer    *ws.Dialer
}

func NewFeed(url string, reconnect time.Duration, ctrl Controller) *Feed {
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	return &Feed{
		url:       url,
		reconnect: reconnect,
		ctrl:      ctrl,
		dialer:    ws.DefaultDialer,
	}
}

// Run serves the HUD until ctx is done, redialing after every
// disconnect.
func (f *Feed) Run(ctx context.Context) error {
	updates := f.ctrl.Watch()
	last := <-updates

	for {
		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			log.Debug("HUD not reachable", "url", f.url, "err", err)
		} else {
			log.Info("Connected to HUD", "url", f.url)
			last = f.serve(ctx, conn, updates, last)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.reconnect):
		}

		select {
		case last = <-updates:
		default:
		}
	}
}

// serve pumps one connection and returns the last snapshot it saw.
func (f *Feed) serve(ctx context.Context, conn *ws.Conn, updates <-chan session.Snapshot, last session.Snapshot) session.Snapshot {
	readDone := make(chan error, 1)
	go func() {
		readDone <- f.readLoop(conn)
	}()

	defer func() {
		conn.Close()
		<-readDone
	}()

	if err := write(conn, StatusMessage(last)); err != nil {
		log.Warn("Failed to write to HUD", "err", err)
		return last
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, "shutdown"),
				time.Now().Add(time.Second))
			return last

		case err := <-readDone:
			readDone <- err
			if isClosed(err) {
				log.Warn("HUD disconnected, reconnecting", "url", f.url)
			} else {
				log.Warn("HUD read failed, reconnecting", "err", err)
			}
			return last

		case s := <-updates:
			last = s
			if err := write(conn, StatusMessage(s)); err != nil {
				log.Warn("Failed to write to HUD", "err", err)
				return last
			}
		}
	}
}

func (f *Feed) readLoop(conn *ws.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Malformed HUD frame", "msg", string(data), "err", err)
			continue
		}
		f.handle(m)
	}
}

func (f *Feed) handle(m Message) {
	switch m.Kind {
	case KindTrigger:
		f.ctrl.Trigger()
	case KindLang:
		mode, err := lang.Parse(m.Content)
		if err != nil {
			log.Warn("HUD selected unknown language", "lang", m.Content)
			return
		}
		f.ctrl.SetLanguage(mode)
	default:
		log.Debug("Ignoring HUD frame", "kind", m.Kind)
	}
}

func write(conn *ws.Conn, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

func isClosed(err error) bool {
	var ce *ws.CloseError
	return errors.As(err, &ce) || ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
