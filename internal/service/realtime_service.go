package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/classroomlabs/peergrade-api/internal/dto"
	"github.com/classroomlabs/peergrade-api/internal/models"
	"github.com/classroomlabs/peergrade-api/internal/observability"
	"github.com/classroomlabs/peergrade-api/internal/repository"
)

const realtimeSendBufferSize = 32

// ErrRoomNotAllowed indicates the caller tried to enter a room they have no
// claim on.
var ErrRoomNotAllowed = errors.New("not allowed to join room")

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	User          models.User
	CorrelationID string
	Context       context.Context
}

// RealtimeService fans grading events out to connected clients. It keeps a
// local hub of rooms and republishes every event to redis and NATS so peer
// nodes can reach their own clients; events from peers are deduped by node
// ID. Delivery is fire-and-forget.
type RealtimeService interface {
	Broadcaster
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

type realtimeService struct {
	scores      ScoreService
	sections    repository.SectionRepository
	memberships repository.MembershipRepository
	redis       *redis.Client
	redisChan   string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *realtimeHub
	nodeID      string
}

// realtimeHub tracks which clients sit in which rooms. One client may occupy
// several rooms at once (its section, its group, a management view).
type realtimeHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    *websocket.Conn
	send    chan dto.RealtimeEnvelope
	options RealtimeConnectionOptions
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	mu    sync.Mutex
	rooms map[string]struct{}
}

// realtimeEvent is the cross-node wire form of a room broadcast.
type realtimeEvent struct {
	Source   string               `json:"source"`
	Room     string               `json:"room"`
	Envelope dto.RealtimeEnvelope `json:"envelope"`
	SentAt   time.Time            `json:"sent_at"`
}

// NewRealtimeService creates the realtime fanout service. redisClient and
// natsConn may be nil; the hub then serves this node's clients only.
func NewRealtimeService(
	scores ScoreService,
	sections repository.SectionRepository,
	memberships repository.MembershipRepository,
	redisClient *redis.Client,
	channelBase string,
	natsConn *nats.Conn,
	logger zerolog.Logger,
) RealtimeService {
	hub := &realtimeHub{
		rooms: make(map[string]map[*realtimeClient]struct{}),
		log:   logger.With().Str("component", "realtime_hub").Logger(),
	}

	redisChan := ""
	natsSubject := ""
	if channelBase != "" {
		redisChan = channelBase + ":events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &realtimeService{
		scores:      scores,
		sections:    sections,
		memberships: memberships,
		redis:       redisClient,
		redisChan:   redisChan,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func sectionRoom(id uint) string    { return fmt.Sprintf("section:%d", id) }
func groupRoom(id uint) string      { return fmt.Sprintf("group:%d", id) }
func managementRoom(id uint) string { return fmt.Sprintf("management:%d", id) }

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChan != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &realtimeClient{
		conn:    conn,
		send:    make(chan dto.RealtimeEnvelope, realtimeSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
		rooms:   make(map[string]struct{}),
	}

	observability.RealtimeConnectionsTotal().Inc()

	go client.writer()
	client.reader()
}

// EmitSectionUpdated tells the section room its lifecycle moved.
func (s *realtimeService) EmitSectionUpdated(section models.Section) {
	s.emit(sectionRoom(section.ID), dto.EventSectionUpdated, dto.SectionUpdatedEvent{
		ID:           section.ID,
		Status:       string(section.Status),
		AssignmentID: section.AssignmentID,
	})
}

// EmitStudentJoined tells the teacher's management view about a new member.
func (s *realtimeService) EmitStudentJoined(sectionID uint, user models.User) {
	s.emit(managementRoom(sectionID), dto.EventStudentJoined, dto.StudentJoinedEvent{
		SectionID: sectionID,
		User:      dto.NewUserLite(user),
	})
}

// EmitSubmissionReceived tells the management view a student turned work in.
func (s *realtimeService) EmitSubmissionReceived(sectionID uint, submission models.Submission) {
	s.emit(managementRoom(sectionID), dto.EventSubmissionReceived, dto.SubmissionReceivedEvent{
		SectionID:    sectionID,
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
	})
}

// EmitScoreUpdated pushes the authoritative score state to the group room.
func (s *realtimeService) EmitScoreUpdated(groupID uint, score dto.ScoreResponse, consensusReached bool) {
	s.emitScoreResponse(groupID, score, consensusReached)
}

// EmitReportGenerated tells the section room fresh results are available.
func (s *realtimeService) EmitReportGenerated(sectionID, reportID uint, version int) {
	s.emit(sectionRoom(sectionID), dto.EventReportGenerated, dto.ReportGeneratedEvent{
		SectionID: sectionID,
		ReportID:  reportID,
		Version:   version,
	})
}

// EmitLinkToggled tells the section room the invite link flipped or changed.
func (s *realtimeService) EmitLinkToggled(section models.Section) {
	s.emit(sectionRoom(section.ID), dto.EventLinkToggled, dto.LinkToggledEvent{
		JoinableCode: section.JoinableCode,
		Active:       section.LinkActive,
	})
}

func (s *realtimeService) emitScoreResponse(groupID uint, score dto.ScoreResponse, consensusReached bool) {
	s.emit(groupRoom(groupID), dto.EventScoreUpdated, dto.ScoreUpdatedEvent{
		GroupID:          groupID,
		Score:            score,
		ConsensusReached: consensusReached,
	})
}

func (s *realtimeService) emit(room, event string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("failed to marshal realtime payload")
		return
	}

	envelope := dto.RealtimeEnvelope{Event: event, Payload: raw}
	s.hub.broadcast(room, envelope)
	if err := s.publish(context.Background(), room, envelope); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("failed to publish realtime event")
	}

	observability.RealtimeEventsSent().WithLabelValues(event).Inc()
}

func (s *realtimeService) publish(ctx context.Context, room string, envelope dto.RealtimeEnvelope) error {
	if (s.redis == nil || s.redisChan == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	event := realtimeEvent{
		Source:   s.nodeID,
		Room:     room,
		Envelope: envelope,
		SentAt:   time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChan != "" {
		if err := s.redis.Publish(ctx, s.redisChan, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChan)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "peergrade-realtime", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleEvent(data []byte) {
	var event realtimeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Room, event.Envelope)
}

// handleCommand runs one client-initiated envelope. Errors are reported back
// on the client's own channel, never broadcast.
func (s *realtimeService) handleCommand(ctx context.Context, client *realtimeClient, envelope dto.RealtimeEnvelope) error {
	var cmd dto.RealtimeCommand
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &cmd); err != nil {
			return fmt.Errorf("invalid command payload: %w", err)
		}
	}

	user := client.options.User

	switch envelope.Event {
	case dto.CommandSectionJoin:
		if err := s.checkSectionAccess(ctx, cmd.SectionID, user); err != nil {
			return err
		}
		s.hub.join(client, sectionRoom(cmd.SectionID))
	case dto.CommandSectionLeave:
		s.hub.leave(client, sectionRoom(cmd.SectionID))
	case dto.CommandManagementJoin:
		if err := s.checkManagementAccess(ctx, cmd.SectionID, user); err != nil {
			return err
		}
		s.hub.join(client, managementRoom(cmd.SectionID))
	case dto.CommandGroupJoin:
		if err := s.checkGroupAccess(ctx, cmd.SectionID, cmd.GroupID, user); err != nil {
			return err
		}
		s.hub.join(client, groupRoom(cmd.GroupID))
	case dto.CommandGroupLeave:
		s.hub.leave(client, groupRoom(cmd.GroupID))
	case dto.CommandEvaluationUpdate:
		score, err := s.scores.UpdateEvaluation(ctx, cmd.ScoreID, user.ID, dto.EvaluationUpdateRequest{
			Evaluation: cmd.Evaluation,
		})
		if err != nil {
			return err
		}
		if score.GroupID != nil {
			s.emitScoreResponse(*score.GroupID, score, false)
		}
	case dto.CommandEvaluationAgree:
		score, reached, err := s.scores.SignEvaluation(ctx, cmd.ScoreID, user.ID)
		if err != nil {
			return err
		}
		if score.GroupID != nil {
			s.emitScoreResponse(*score.GroupID, score, reached)
		}
		if reached {
			observability.ConsensusReachedTotal().Inc()
		}
	default:
		return fmt.Errorf("unknown event %q", envelope.Event)
	}

	return nil
}

func (s *realtimeService) checkSectionAccess(ctx context.Context, sectionID uint, user models.User) error {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return err
	}

	if user.Role == models.RoleAdmin || section.TeacherID == user.ID {
		return nil
	}

	if _, err := s.memberships.GetByUserAndSection(ctx, user.ID, sectionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotAllowed
		}
		return err
	}

	return nil
}

func (s *realtimeService) checkManagementAccess(ctx context.Context, sectionID uint, user models.User) error {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return err
	}

	if user.Role == models.RoleAdmin || (user.IsStaff() && section.TeacherID == user.ID) {
		return nil
	}

	return ErrRoomNotAllowed
}

func (s *realtimeService) checkGroupAccess(ctx context.Context, sectionID, groupID uint, user models.User) error {
	membership, err := s.memberships.GetByUserAndSection(ctx, user.ID, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotAllowed
		}
		return err
	}

	if membership.GroupID == nil || *membership.GroupID != groupID {
		return ErrRoomNotAllowed
	}

	return nil
}

func (h *realtimeHub) join(client *realtimeClient, room string) {
	h.mu.Lock()
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*realtimeClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.mu.Unlock()

	client.mu.Lock()
	client.rooms[room] = struct{}{}
	client.mu.Unlock()

	h.log.Debug().Str("room", room).Uint("user_id", client.options.User.ID).Msg("realtime client joined room")
}

func (h *realtimeHub) leave(client *realtimeClient, room string) {
	h.mu.Lock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	client.mu.Lock()
	delete(client.rooms, room)
	client.mu.Unlock()
}

func (h *realtimeHub) unregister(client *realtimeClient) {
	client.mu.Lock()
	rooms := make([]string, 0, len(client.rooms))
	for room := range client.rooms {
		rooms = append(rooms, room)
	}
	client.rooms = make(map[string]struct{})
	client.mu.Unlock()

	h.mu.Lock()
	for _, room := range rooms {
		if clients, ok := h.rooms[room]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	h.log.Debug().Uint("user_id", client.options.User.ID).Msg("realtime client disconnected")
}

func (h *realtimeHub) broadcast(room string, envelope dto.RealtimeEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[room]
	for client := range clients {
		select {
		case client.send <- envelope:
		default:
			h.log.Warn().Str("room", room).Uint("user_id", client.options.User.ID).Msg("dropping realtime event for slow client")
		}
	}
}

func (c *realtimeClient) reader() {
	defer c.close()

	for {
		var envelope dto.RealtimeEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		if err := c.service.handleCommand(c.baseCtx, c, envelope); err != nil {
			c.service.logger.Warn().
				Err(err).
				Str("event", envelope.Event).
				Uint("user_id", c.options.User.ID).
				Msg("realtime command rejected")
			c.sendError(err)
		}
	}
}

func (c *realtimeClient) sendError(err error) {
	raw, marshalErr := json.Marshal(dto.ErrorEvent{Message: err.Error()})
	if marshalErr != nil {
		return
	}

	select {
	case c.send <- dto.RealtimeEnvelope{Event: dto.EventError, Payload: raw}:
	default:
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
