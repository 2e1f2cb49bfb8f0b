package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/Papun1111/pagesmith/internal/database"
	"github.com/Papun1111/pagesmith/internal/server"
	"github.com/Papun1111/pagesmith/internal/types"
)

type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type UpdateContentRequest struct {
	Id      string `json:"id"`
	Content string `json:"content"`
}

// UpdatePermissionsRequest grants or revokes a collaborator's access. An
// empty access level revokes the entry.
type UpdatePermissionsRequest struct {
	Id     string            `json:"id"`
	UserId string            `json:"user_id"`
	Access types.AccessLevel `json:"access"`
}

func (s *PagesmithApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *PagesmithApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *PagesmithApp) account(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(r.Context(), identity)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, types.User{
		Id:        user.Id,
		Email:     user.Email,
		Name:      user.Name,
		Plan:      types.Plan(user.Plan),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
}

func (s *PagesmithApp) createDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	doc, err := s.db.CreateDocument(r.Context(), database.CreateDocumentParams{
		Id:      sid,
		OwnerId: identity,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toDocument(doc))
}

func (s *PagesmithApp) getDocuments(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	documentId := r.URL.Query().Get("id")
	if documentId == "" {
		docs, err := s.db.ListDocumentsForUser(r.Context(), identity)
		if err != nil {
			s.log.Println("list documents:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		result := make([]types.Document, 0, len(docs))
		for _, doc := range docs {
			result = append(result, toDocument(doc))
		}

		s.writeJson(w, http.StatusOK, result)
		return
	}

	dbDoc, err := s.db.GetDocumentById(r.Context(), documentId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	doc := toDocument(dbDoc)
	if !doc.CanRead(identity) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, doc)
}

// updateDocumentContent is the explicit save path. Real-time broadcasts do
// not persist content; clients debounce and save through here.
func (s *PagesmithApp) updateDocumentContent(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Id == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbDoc, err := s.db.GetDocumentById(r.Context(), req.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	doc := toDocument(dbDoc)
	if !doc.CanWrite(identity) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.UpdateDocumentContent(r.Context(), req.Id, req.Content); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *PagesmithApp) updateDocumentPermissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Id == "" || req.UserId == "" || (req.Access != "" && !req.Access.Valid()) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbDoc, err := s.db.GetDocumentById(r.Context(), req.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the owner manages sharing
	if dbDoc.OwnerId != identity {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// the owner is implicitly write-capable and never listed
	if req.UserId == dbDoc.OwnerId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var updated database.Document
	if req.Access == "" {
		updated, err = s.db.RemoveDocumentCollaborator(r.Context(), req.Id, req.UserId)
	} else {
		updated, err = s.db.SetDocumentCollaborator(r.Context(), req.Id, database.Collaborator{
			UserId: req.UserId,
			Access: string(req.Access),
		})
	}
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toDocument(updated))
}

func (s *PagesmithApp) deleteDocument(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	documentId := r.URL.Query().Get("id")
	if documentId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	doc, err := s.db.GetDocumentById(r.Context(), documentId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if doc.OwnerId != identity {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteDocument(r.Context(), documentId); err != nil {
		s.log.Println("delete document:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.UnloadRoom(r.Context(), documentId); err != nil {
		s.log.Println("unload room:", err)
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *PagesmithApp) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := Identity(r.Context())
	if !ok || identity == "" {
		// never hand a connection to the collab server without a bound identity
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(identity, conn, s.cs, s.log)

	select {
	case s.cs.RegisterChan <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}

func toDocument(doc database.Document) types.Document {
	collabs := make([]types.Collaborator, len(doc.Collaborators))
	for i, c := range doc.Collaborators {
		collabs[i] = types.Collaborator{
			UserId: c.UserId,
			Access: types.AccessLevel(c.Access),
		}
	}

	return types.Document{
		Id:            doc.Id,
		OwnerId:       doc.OwnerId,
		Title:         doc.Title,
		Content:       doc.Content,
		Collaborators: collabs,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}
