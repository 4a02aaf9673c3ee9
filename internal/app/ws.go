package app

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"redink/api/internal/canvas"
	"redink/api/internal/store"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// annotateMessage is the inbound frame for the live annotation socket.
type annotateMessage struct {
	Type   string   `json:"type"`
	Page   int      `json:"page,omitempty"`
	Width  float64  `json:"width,omitempty"`
	Height float64  `json:"height,omitempty"`
	X      float64  `json:"x,omitempty"`
	Y      float64  `json:"y,omitempty"`
	Target string   `json:"target,omitempty"`
	ID     string   `json:"id,omitempty"`
	IDs    []string `json:"ids,omitempty"`
	Tool   string   `json:"tool,omitempty"`
	Color  string   `json:"color,omitempty"`
	Value  float64  `json:"value,omitempty"`
	Text   string   `json:"text,omitempty"`
	ScaleX float64  `json:"scaleX,omitempty"`
	ScaleY float64  `json:"scaleY,omitempty"`
	Left   float64  `json:"left,omitempty"`
	Top    float64  `json:"top,omitempty"`
}

type annotateEvent struct {
	Type    string          `json:"type"`
	Page    int             `json:"page"`
	Objects json.RawMessage `json:"objects,omitempty"`
	HasUndo bool            `json:"hasUndo"`
	Error   string          `json:"error,omitempty"`
}

// handleAnnotate upgrades to a websocket and binds the connection to a live
// canvas session for the document. Every committed edit is echoed back with
// the page's normalized objects and persisted on the session's debounce.
func (s *HTTPServer) handleAnnotate(w http.ResponseWriter, r *http.Request, doc store.Document) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade for document %s: %v", doc.ID, err)
		return
	}
	defer conn.Close()

	send := make(chan annotateEvent, wsSendBuffer)

	session := canvas.NewDocumentSession(doc.ID, s.saveAnnotationFunc(), canvas.SessionOptions{
		Debounce: s.service.cfg.SaveDebounce,
		OnChange: func(page int, payload canvas.Payload) {
			data, err := json.Marshal(payload.Objects)
			if err != nil {
				return
			}
			select {
			case send <- annotateEvent{Type: "change", Page: page, Objects: data}:
			default:
				log.Printf("ws: drop change event for document %s page %d", doc.ID, page)
			}
		},
		OnHistory: func(page int, hasUndo bool) {
			select {
			case send <- annotateEvent{Type: "history", Page: page, HasUndo: hasUndo}:
			default:
			}
		},
	})
	defer session.Close()

	if err := s.loadStoredPages(r.Context(), session, doc.ID); err != nil {
		log.Printf("ws: load annotations for document %s: %v", doc.ID, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}()

	for {
		var msg annotateMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read for document %s: %v", doc.ID, err)
			}
			break
		}
		s.dispatchAnnotate(session, msg)
	}

	close(send)
	<-done
}

func (s *HTTPServer) dispatchAnnotate(session *canvas.DocumentSession, msg annotateMessage) {
	switch msg.Type {
	case "ensurePage":
		session.EnsurePage(msg.Page, msg.Width, msg.Height)
	case "tool":
		session.SetActiveTool(canvas.Tool(msg.Tool))
	case "color":
		session.SetActiveColor(msg.Color)
	case "strokeWidth":
		session.SetStrokeWidth(msg.Value)
	case "pointerDown":
		session.PointerDown(msg.Page, canvas.Point{X: msg.X, Y: msg.Y}, msg.Target)
	case "pointerMove":
		session.PointerMove(msg.Page, canvas.Point{X: msg.X, Y: msg.Y})
	case "pointerUp":
		session.PointerUp(msg.Page, canvas.Point{X: msg.X, Y: msg.Y})
	case "textEditExit":
		session.ExitTextEdit(msg.Page, msg.Text)
	case "selection":
		session.SetSelection(msg.Page, msg.IDs)
	case "objectMoving":
		session.ObjectMoving(msg.Page, msg.ID, msg.Left, msg.Top)
	case "objectScaling":
		session.ObjectScaling(msg.Page, msg.ID, msg.ScaleX, msg.ScaleY, msg.Left, msg.Top)
	case "objectModified":
		session.ObjectModified(msg.Page, msg.ID)
	case "recolor":
		session.Recolor(msg.Color)
	case "delete":
		session.DeleteSelection()
	case "undo":
		session.Undo()
	case "clear":
		session.Clear()
	}
}

// saveAnnotationFunc adapts the service's annotation upsert to the canvas
// session's debounced persistence hook.
func (s *HTTPServer) saveAnnotationFunc() canvas.SaveFunc {
	return func(ctx context.Context, documentID string, page int, payload canvas.Payload) error {
		data, err := payload.Encode()
		if err != nil {
			return err
		}
		return s.service.SaveAnnotation(ctx, documentID, page, data)
	}
}

func (s *HTTPServer) loadStoredPages(ctx context.Context, session *canvas.DocumentSession, documentID string) error {
	byPage, err := s.service.Annotations(ctx, documentID)
	if err != nil {
		return err
	}
	pages := make(map[int]canvas.Payload, len(byPage))
	for page, raw := range byPage {
		payload, err := canvas.DecodePayload(raw)
		if err != nil {
			log.Printf("ws: decode stored page %d for document %s: %v", page, documentID, err)
			continue
		}
		pages[page] = payload
	}
	session.Load(pages)
	return nil
}
