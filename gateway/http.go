package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"soulconnect/auth"
	"soulconnect/domain"
	"soulconnect/errors"
	"soulconnect/runtime"
	"soulconnect/services"
)

const (
	defaultHistoryLimit = 50
	defaultSearchLimit  = 25
)

type Handler struct {
	log      *slog.Logger
	auth     services.IAuthService
	match    services.IMatchService
	presence services.IPresenceService
	chat     services.IChatService
	engine   *runtime.Engine
}

func NewHandler(log *slog.Logger, authService services.IAuthService, match services.IMatchService,
	presence services.IPresenceService, chat services.IChatService, engine *runtime.Engine) *Handler {
	return &Handler{
		log:      log,
		auth:     authService,
		match:    match,
		presence: presence,
		chat:     chat,
		engine:   engine,
	}
}

// NewRouter wires the REST surface and the realtime endpoint.
func NewRouter(h *Handler, ws *SocketGateway, tokens *auth.Tokens) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/api/health", h.Health)
	r.Post("/api/register", h.Register)
	r.Post("/api/login", h.Login)

	r.Get("/ws", ws.Handle)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(tokens))

		r.Get("/api/profile", h.Profile)
		r.Post("/api/test-results", h.SaveTestResults)
		r.Post("/api/villain-test", h.SaveVillainResult)
		r.Get("/api/matches", h.SimpleMatches)
		r.Post("/api/matching/find", h.FindMatches)
		r.Get("/api/users/online", h.OnlineUsers)

		r.Post("/api/chat/room", h.CreateRoom)
		r.Get("/api/chat/rooms", h.Rooms)
		r.Get("/api/chat/{roomID}/messages", h.History)
		r.Post("/api/chat/{roomID}/message", h.PostMessage)
		r.Get("/api/chat/{roomID}/search", h.Search)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"username"`
	Password    string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  identityDTO `json:"user"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	identity, token, err := h.auth.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token.String(), User: toIdentityDTO(identity)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	identity, token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token.String(), User: toIdentityDTO(identity)})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	identity, err := h.auth.Profile(claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityDTO(identity))
}

type testResultsRequest struct {
	Traits []string `json:"traits"`
}

func (h *Handler) SaveTestResults(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var req testResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	identity, err := h.match.SaveTestResults(claims.UserID, req.Traits)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityDTO(identity))
}

type villainTestRequest struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

func (h *Handler) SaveVillainResult(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var req villainTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.match.SaveVillainResult(claims.UserID, req.Score, req.Level); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "villain test results saved"})
}

func (h *Handler) SimpleMatches(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	matches, err := h.match.SimpleMatches(claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := make([]simpleMatchDTO, 0, len(matches))
	for _, m := range matches {
		payload = append(payload, simpleMatchDTO{
			Identity:     toIdentityDTO(m.Identity),
			MatchScore:   m.MatchScore,
			CommonTraits: m.CommonTraits,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": payload})
}

func (h *Handler) FindMatches(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	results, err := h.match.FindMatches(claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := make([]matchResultDTO, 0, len(results))
	for _, m := range results {
		payload = append(payload, toMatchResultDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": payload})
}

func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	users, err := h.presence.OnlineUsers(claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type createRoomRequest struct {
	CounterpartID  string   `json:"targetUserId"`
	ParticipantIDs []string `json:"participantIds"`
}

// CreateRoom opens a private room against one counterpart, or a fresh
// group room when a participant list is given instead.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var (
		room domain.Room
		err  error
	)
	switch {
	case len(req.ParticipantIDs) > 0:
		room, err = h.chat.CreateGroupRoom(claims.UserID, req.ParticipantIDs)
	case req.CounterpartID != "":
		room, err = h.chat.FindOrCreatePrivateRoom(r.Context(), claims.UserID, req.CounterpartID)
	default:
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomDTO(room))
}

func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	rooms, err := h.chat.RoomsFor(claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		payload = append(payload, toRoomDTO(room))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": payload})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	roomID := chi.URLParam(r, "roomID")
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultHistoryLimit)

	messages, err := h.chat.History(domain.HistoryCommand{
		Room:        domain.RoomID(roomID),
		RequesterID: claims.UserID,
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload := make([]messageDTO, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, toMessageDTO(msg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": payload, "page": page, "limit": limit})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	roomID := chi.URLParam(r, "roomID")
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	msg, err := h.chat.SendMessage(r.Context(), domain.SendMessageCommand{
		Room:       domain.RoomID(roomID),
		SenderID:   claims.UserID,
		SenderName: claims.DisplayName,
		Content:    req.Content,
		Kind:       domain.MessageText,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageDTO(msg))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFrom(r.Context())
	roomID := chi.URLParam(r, "roomID")
	query := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", defaultSearchLimit)

	hits, err := h.chat.Search(r.Context(), claims.UserID, domain.RoomID(roomID), query, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

type identityDTO struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"username"`
	Email        string    `json:"email"`
	Traits       []string  `json:"traits"`
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	Synthetic    bool      `json:"isAI"`
	VillainScore int       `json:"villainScore"`
	VillainLevel string    `json:"villainLevel"`
	LastActiveAt time.Time `json:"lastActive"`
}

func toIdentityDTO(identity domain.Identity) identityDTO {
	return identityDTO{
		ID:           identity.ID,
		DisplayName:  identity.DisplayName,
		Email:        identity.Email,
		Traits:       identity.Traits,
		Bio:          identity.Bio,
		Avatar:       identity.Avatar,
		Synthetic:    identity.Synthetic,
		VillainScore: identity.VillainScore,
		VillainLevel: identity.VillainLevel,
		LastActiveAt: identity.LastActiveAt,
	}
}

type simpleMatchDTO struct {
	Identity     identityDTO `json:"user"`
	MatchScore   int         `json:"matchScore"`
	CommonTraits []string    `json:"commonTraits"`
}

type matchResultDTO struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Avatar          string    `json:"avatar"`
	Traits          []string  `json:"traits"`
	Bio             string    `json:"bio"`
	Synthetic       bool      `json:"isAI"`
	Compatibility   int       `json:"compatibility"`
	MatchFactors    []string  `json:"matchFactors"`
	LastActive      time.Time `json:"lastActive"`
	Status          string    `json:"status"`
	PersonalityType string    `json:"personalityType"`
	Interests       []string  `json:"interests"`
}

func toMatchResultDTO(m domain.MatchResult) matchResultDTO {
	return matchResultDTO{
		ID:              m.CounterpartID,
		Name:            m.DisplayName,
		Avatar:          m.Avatar,
		Traits:          m.Traits,
		Bio:             m.Bio,
		Synthetic:       m.Synthetic,
		Compatibility:   m.Score,
		MatchFactors:    m.Factors,
		LastActive:      m.LastActiveAt,
		Status:          string(m.Status),
		PersonalityType: m.PersonalityType,
		Interests:       m.Interests,
	}
}

type roomDTO struct {
	ID             string    `json:"id"`
	Participants   []string  `json:"participants"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivity"`
}

func toRoomDTO(room domain.Room) roomDTO {
	return roomDTO{
		ID:             string(room.ID),
		Participants:   room.Participants,
		Kind:           string(room.Kind),
		CreatedAt:      room.CreatedAt,
		LastActivityAt: room.LastActivityAt,
	}
}

type messageDTO struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Kind       string    `json:"kind"`
	SentAt     time.Time `json:"timestamp"`
}

func toMessageDTO(msg domain.Message) messageDTO {
	return messageDTO{
		ID:         msg.ID.String(),
		RoomID:     string(msg.Room),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Kind:       string(msg.Kind),
		SentAt:     msg.SentAt,
	}
}
