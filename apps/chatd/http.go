package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/aminrj/storedesk/pkg/auth"
	"github.com/aminrj/storedesk/pkg/convo"
	"github.com/aminrj/storedesk/pkg/delivery"
	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/presence"
)

const defaultHistoryLimit = 50

// api is the request/response surface: durable fallback and bootstrap paths
// that do not require a live connection.
type api struct {
	agg   *convo.Aggregator
	coord *delivery.Coordinator
	bcast *delivery.Broadcaster
	rec   identity.Recorder
	rdb   *redis.Client
}

func newAPI(agg *convo.Aggregator, coord *delivery.Coordinator, bcast *delivery.Broadcaster, rec identity.Recorder, rdb *redis.Client) *api {
	return &api{agg: agg, coord: coord, bcast: bcast, rec: rec, rdb: rdb}
}

func (a *api) routes(r *mux.Router) {
	r.Use(corsMiddleware)
	r.HandleFunc("/login", a.login).Methods(http.MethodPost, http.MethodOptions)

	s := r.NewRoute().Subrouter()
	s.Use(authMiddleware)
	s.HandleFunc("/conversations", a.listConversations).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/conversations/{id}/messages", a.history).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/conversations/{id}/read", a.markRead).Methods(http.MethodPost, http.MethodOptions)
	s.HandleFunc("/messages", a.send).Methods(http.MethodPost, http.MethodOptions)
	s.HandleFunc("/unread", a.unread).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/presence/online", a.online).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/notifications", a.notify).Methods(http.MethodPost, http.MethodOptions)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get("Authorization")
		if tokenString == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
			tokenString = tokenString[7:]
		}
		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), auth.UserKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
	return claims, ok
}

type loginRequest struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Name   string     `json:"name"`
	Avatar string     `json:"avatar"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// login mints a token for an already-verified identity. In production the
// storefront's account service performs verification and calls this; there is
// no credential check here.
func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Role != model.RoleAdmin {
		req.Role = model.RoleCustomer
	}

	ident := model.Identity{ID: req.UserID, Role: req.Role, Name: req.Name, Avatar: req.Avatar}
	if a.rec != nil {
		if err := a.rec.Record(r.Context(), ident); err != nil {
			log.Printf("identity record %s: %v", ident.ID, err)
		}
	}

	token, err := auth.GenerateToken(ident)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (a *api) listConversations(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	summaries, err := a.agg.ListConversations(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	counterpartID := mux.Vars(r)["id"]

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := a.agg.GetHistory(r.Context(), claims.UserID, counterpartID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *api) markRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	senderID := mux.Vars(r)["id"]

	updated, err := a.coord.MarkRead(r.Context(), senderID, claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

type sendRequest struct {
	RecipientID string            `json:"recipient_id"`
	Body        string            `json:"body"`
	Kind        model.MessageKind `json:"kind"`
	File        *model.FileMeta   `json:"file"`
}

// send is the durable fallback path, equivalent to a compose event.
func (a *api) send(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := a.coord.Send(r.Context(), claims.UserID, req.RecipientID, req.Body, req.Kind, req.File)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *api) unread(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	total, err := a.agg.TotalUnread(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": total})
}

// online reads the mirrored presence set, the same view out-of-process
// consumers get.
func (a *api) online(w http.ResponseWriter, r *http.Request) {
	ids, err := a.rdb.SMembers(r.Context(), presence.OnlineSet).Result()
	if err != nil {
		log.Printf("presence read: %v", err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

type notifyRequest struct {
	Notification model.Notification `json:"notification"`
	TargetIDs    []string           `json:"target_ids"`
	Audience     model.Audience     `json:"audience"`
}

func (a *api) notify(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if claims.Role != model.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n := a.bcast.Broadcast(r.Context(), req.Notification, model.BroadcastTarget{
		IDs:      req.TargetIDs,
		Audience: req.Audience,
	})
	writeJSON(w, http.StatusAccepted, n)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRecipient):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrUnknownIdentity):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrPersistence):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
