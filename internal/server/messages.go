package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join     *Join   `json:"join,omitempty"`
	Leave    *Leave  `json:"leave,omitempty"`
	Edit     *Edit   `json:"edit,omitempty"`
	Cursor   *Cursor `json:"cursor,omitempty"`
	identity string
	client   *Client
}

type Join struct {
	DocumentId string `json:"document_id"`
}

type Leave struct {
	DocumentId string `json:"document_id"`
}

type Edit struct {
	DocumentId string `json:"document_id"`
	Content    string `json:"content"`
}

// Cursor carries an ephemeral presence update. The position payload is
// relayed to other room members verbatim.
type Cursor struct {
	DocumentId string          `json:"document_id"`
	Position   json.RawMessage `json:"position"`
}

type ServerMessage struct {
	BaseMessage
	Response        *Response        `json:"response,omitempty"`
	DocumentUpdated *DocumentUpdated `json:"document_updated,omitempty"`
	CursorMoved     *CursorMoved     `json:"cursor_moved,omitempty"`
	SkipClient      *Client          `json:"-"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type DocumentUpdated struct {
	DocumentId string `json:"document_id"`
	Content    string `json:"content"`
	UserId     string `json:"user_id"`
}

type CursorMoved struct {
	DocumentId string          `json:"document_id"`
	UserId     string          `json:"user_id"`
	Position   json.RawMessage `json:"position"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrDocumentNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "document not found",
		},
	}
}

func ErrNotInRoom(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "not joined to document",
		},
	}
}

func ErrPermissionDenied(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "permission denied",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
