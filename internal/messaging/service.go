package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/checkin"
	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
	"github.com/Khuzaim123/nomadnet-messaging/internal/marketplace"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
	"github.com/Khuzaim123/nomadnet-messaging/internal/users"
	"github.com/Khuzaim123/nomadnet-messaging/internal/ws"
)

// ErrCollaboratorUnavailable marks a send aborted because a downstream
// collaborator (identity, marketplace, check-in) could not answer.
var ErrCollaboratorUnavailable = errors.New("downstream collaborator unavailable")

// EventSink is where the service pushes live events. The hub implements it;
// tests swap in a recorder. Delivery is fire-and-forget.
type EventSink interface {
	ToUser(userID uuid.UUID, payload []byte)
	ToConversation(conversationID uuid.UUID, payload []byte)
}

type Limits struct {
	DefaultPageLimit int
	MaxPageLimit     int
	MaxContentLength int
}

func DefaultLimits() Limits {
	return Limits{DefaultPageLimit: 20, MaxPageLimit: 100, MaxContentLength: 4096}
}

// Service is the messaging core orchestrator: it owns membership checks,
// payload validation and event fan-out, and funnels every counter mutation
// through the two repos.
type Service struct {
	conversations conversations.Repo
	messages      messages.Repo
	directory     users.Directory
	listings      marketplace.Lister
	checkins      checkin.Service
	events        EventSink
	limits        Limits
	log           *slog.Logger
}

func New(
	conversationsRepo conversations.Repo,
	messagesRepo messages.Repo,
	directory users.Directory,
	listings marketplace.Lister,
	checkins checkin.Service,
	events EventSink,
	limits Limits,
	log *slog.Logger,
) *Service {
	if limits.DefaultPageLimit <= 0 {
		limits.DefaultPageLimit = DefaultLimits().DefaultPageLimit
	}
	if limits.MaxPageLimit <= 0 {
		limits.MaxPageLimit = DefaultLimits().MaxPageLimit
	}
	if limits.MaxContentLength <= 0 {
		limits.MaxContentLength = DefaultLimits().MaxContentLength
	}

	return &Service{
		conversations: conversationsRepo,
		messages:      messagesRepo,
		directory:     directory,
		listings:      listings,
		checkins:      checkins,
		events:        events,
		limits:        limits,
		log:           log,
	}
}

// GetOrCreateConversation returns the unique conversation between the two
// users, creating it on first use. Order of arguments does not matter.
func (s *Service) GetOrCreateConversation(ctx context.Context, currentUser, otherUser uuid.UUID) (conversations.Conversation, error) {
	const op = "messaging.GetOrCreateConversation"

	if currentUser == otherUser {
		return conversations.Conversation{}, conversations.ErrSelfConversation
	}

	if _, err := s.directory.ResolveUser(ctx, otherUser); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return conversations.Conversation{}, err
		}
		return conversations.Conversation{}, fmt.Errorf("%s: %w: %v", op, ErrCollaboratorUnavailable, err)
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, currentUser, otherUser)
	if err != nil {
		return conversations.Conversation{}, fmt.Errorf("%s: %w", op, err)
	}

	if created {
		s.log.Info("conversation created",
			slog.String("conversation_id", conv.ID.String()),
		)
	}

	return conv, nil
}

// SendMessage validates the payload by type, persists the message together
// with its counter updates and fans out message_received to every socket of
// both members.
func (s *Service) SendMessage(ctx context.Context, sender uuid.UUID, req messages.SendRequest) (messages.Message, error) {
	const op = "messaging.SendMessage"

	if len(req.Content) > s.limits.MaxContentLength {
		return messages.Message{}, messages.ErrContentTooLong
	}
	if err := req.Validate(); err != nil {
		return messages.Message{}, err
	}

	var conv conversations.Conversation
	var err error
	if req.ConversationID != nil && *req.ConversationID != uuid.Nil {
		conv, err = s.conversations.GetByID(ctx, *req.ConversationID)
		if err != nil {
			return messages.Message{}, err
		}
	} else {
		conv, err = s.GetOrCreateConversation(ctx, sender, req.ReceiverID)
		if err != nil {
			return messages.Message{}, err
		}
	}

	if !conv.HasMember(sender) {
		return messages.Message{}, conversations.ErrNotMember
	}
	receiver := conv.OtherMember(sender)
	if req.ReceiverID != uuid.Nil && req.ReceiverID != receiver {
		return messages.Message{}, conversations.ErrNotMember
	}

	m := messages.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       sender,
		ReceiverID:     receiver,
		Type:           req.Type,
		Content:        req.Content,
	}
	if req.ImageURL != "" {
		imageURL := req.ImageURL
		m.ImageURL = &imageURL
	}
	if len(req.Coordinates) == 2 {
		lon, lat := req.Coordinates[0], req.Coordinates[1]
		m.Longitude, m.Latitude = &lon, &lat
	}

	if err := s.resolveTypePayload(ctx, &m, req); err != nil {
		return messages.Message{}, err
	}

	if err := s.messages.Create(ctx, &m); err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.attachIdentities(ctx, &m)

	if payload, err := ws.NewEvent(conv.ID, ws.MessageReceived, ws.MessageReceivedPayload{Message: m}); err != nil {
		s.log.Error("failed to build message_received event", sl.Err(err))
	} else {
		s.events.ToUser(receiver, payload)
		s.events.ToUser(sender, payload)
	}

	return m, nil
}

// resolveTypePayload runs the collaborator-backed part of validation. A
// failing collaborator aborts the send; no message row is written.
func (s *Service) resolveTypePayload(ctx context.Context, m *messages.Message, req messages.SendRequest) error {
	switch req.Type {
	case messages.TypeMarketplaceItem, messages.TypeMarketplaceOffer:
		listing, err := s.listings.GetListingSummary(ctx, *req.ListingID)
		if err != nil {
			if errors.Is(err, marketplace.ErrListingNotFound) {
				return err
			}
			return fmt.Errorf("%w: listing lookup: %v", ErrCollaboratorUnavailable, err)
		}
		if !listing.IsActive {
			return messages.ErrListingInactive
		}
		m.ListingID = req.ListingID

	case messages.TypeCheckin:
		if req.CheckInID != nil && *req.CheckInID != uuid.Nil {
			if _, err := s.checkins.GetCheckIn(ctx, *req.CheckInID); err != nil {
				if errors.Is(err, checkin.ErrCheckInNotFound) {
					return err
				}
				return fmt.Errorf("%w: check-in lookup: %v", ErrCollaboratorUnavailable, err)
			}
			m.CheckInID = req.CheckInID
			return nil
		}

		created, err := s.checkins.CreateCheckIn(ctx, req.Coordinates[0], req.Coordinates[1])
		if err != nil {
			return fmt.Errorf("%w: check-in create: %v", ErrCollaboratorUnavailable, err)
		}
		id := created.ID
		m.CheckInID = &id
	}

	return nil
}

// MarkConversationRead flips every unread message addressed to user and
// zeroes the counter. Calling it again is a no-op, and no event fires then.
func (s *Service) MarkConversationRead(ctx context.Context, user, conversationID uuid.UUID) error {
	const op = "messaging.MarkConversationRead"

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(user) {
		return conversations.ErrNotMember
	}

	now := time.Now().UTC()
	readIDs, err := s.messages.MarkAllRead(ctx, conversationID, user, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(readIDs) == 0 {
		return nil
	}

	if payload, err := ws.NewEvent(conversationID, ws.MessageRead, ws.MessageReadPayload{
		MessageIDs: readIDs,
		ReaderID:   user,
		ReadAt:     now,
	}); err != nil {
		s.log.Error("failed to build message_read event", sl.Err(err))
	} else {
		s.events.ToUser(conv.OtherMember(user), payload)
	}

	return nil
}

// MarkMessageRead flips a single message; already-read is a silent no-op.
func (s *Service) MarkMessageRead(ctx context.Context, user, messageID uuid.UUID) error {
	const op = "messaging.MarkMessageRead"

	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.ReceiverID != user {
		return messages.ErrNotParticipant
	}

	now := time.Now().UTC()
	applied, err := s.messages.MarkRead(ctx, messageID, user, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		return nil
	}

	if payload, err := ws.NewEvent(m.ConversationID, ws.MessageRead, ws.MessageReadPayload{
		MessageIDs: []uuid.UUID{messageID},
		ReaderID:   user,
		ReadAt:     now,
	}); err != nil {
		s.log.Error("failed to build message_read event", sl.Err(err))
	} else {
		s.events.ToUser(m.SenderID, payload)
	}

	return nil
}

// DeleteMessage hides the message for user. The unread counter is left
// alone even if the message was unread; the repair recount reconciles.
func (s *Service) DeleteMessage(ctx context.Context, user, messageID uuid.UUID) error {
	const op = "messaging.DeleteMessage"

	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID != user && m.ReceiverID != user {
		return messages.ErrNotParticipant
	}

	globallyDeleted, err := s.messages.Delete(ctx, messageID, user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !globallyDeleted {
		return nil
	}

	if payload, err := ws.NewEvent(m.ConversationID, ws.MessageDeleted, ws.MessageDeletedPayload{
		MessageIDs: []uuid.UUID{messageID},
	}); err != nil {
		s.log.Error("failed to build message_deleted event", sl.Err(err))
	} else {
		s.events.ToUser(m.SenderID, payload)
		s.events.ToUser(m.ReceiverID, payload)
	}

	return nil
}

// EditMessage rewrites the content of the caller's own text message.
func (s *Service) EditMessage(ctx context.Context, user, messageID uuid.UUID, content string) (messages.Message, error) {
	const op = "messaging.EditMessage"

	if len(content) > s.limits.MaxContentLength {
		return messages.Message{}, messages.ErrContentTooLong
	}

	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return messages.Message{}, err
	}
	if m.SenderID != user {
		return messages.Message{}, messages.ErrNotSender
	}
	if m.Type != messages.TypeText {
		return messages.Message{}, messages.ErrNotTextMessage
	}
	if content == "" {
		return messages.Message{}, messages.ErrEmptyContent
	}

	updated, err := s.messages.Edit(ctx, messageID, content, time.Now().UTC())
	if err != nil {
		return messages.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.attachIdentities(ctx, &updated)

	if payload, err := ws.NewEvent(updated.ConversationID, ws.MessageUpdated, ws.MessageUpdatedPayload{Message: updated}); err != nil {
		s.log.Error("failed to build message_updated event", sl.Err(err))
	} else {
		s.events.ToUser(updated.ReceiverID, payload)
	}

	return updated, nil
}

// ToggleArchive flips user's archive flag; the other member is unaffected.
func (s *Service) ToggleArchive(ctx context.Context, user, conversationID uuid.UUID) (bool, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if !conv.HasMember(user) {
		return false, conversations.ErrNotMember
	}

	return s.conversations.ToggleArchive(ctx, conversationID, user)
}

// ClearConversation soft-deletes every message still visible to user. The
// conversation row survives.
func (s *Service) ClearConversation(ctx context.Context, user, conversationID uuid.UUID) error {
	const op = "messaging.ClearConversation"

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(user) {
		return conversations.ErrNotMember
	}

	removed, err := s.messages.DeleteAllFor(ctx, conversationID, user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(removed) == 0 {
		return nil
	}

	if payload, err := ws.NewEvent(conversationID, ws.MessageDeleted, ws.MessageDeletedPayload{MessageIDs: removed}); err != nil {
		s.log.Error("failed to build message_deleted event", sl.Err(err))
	} else {
		s.events.ToUser(conv.MemberLow, payload)
		s.events.ToUser(conv.MemberHigh, payload)
	}

	return nil
}

// ListConversations pages through user's conversations, active or archived,
// most recently updated first.
func (s *Service) ListConversations(ctx context.Context, user uuid.UUID, archived bool, page, limit int) ([]conversations.Summary, error) {
	limit, offset := s.pageWindow(page, limit)
	return s.conversations.List(ctx, user, archived, limit, offset)
}

// GetConversation returns the caller's view of one conversation.
func (s *Service) GetConversation(ctx context.Context, user, conversationID uuid.UUID) (conversations.Summary, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return conversations.Summary{}, err
	}
	if !conv.HasMember(user) {
		return conversations.Summary{}, conversations.ErrNotMember
	}

	member, err := s.conversations.GetMember(ctx, conversationID, user)
	if err != nil {
		return conversations.Summary{}, err
	}

	other, err := s.directory.ResolveUser(ctx, conv.OtherMember(user))
	if err != nil {
		return conversations.Summary{}, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}

	summary := conversations.Summary{
		ID:          conv.ID,
		OtherMember: other,
		UnreadCount: member.UnreadCount,
		Archived:    member.Archived,
		UpdatedAt:   conv.UpdatedAt,
	}

	if conv.LastMessageID != nil {
		if last, err := s.messages.GetByID(ctx, *conv.LastMessageID); err == nil {
			summary.LastMessage = &conversations.LastMessagePreview{
				ID:        last.ID,
				SenderID:  last.SenderID,
				Type:      string(last.Type),
				Content:   last.Content,
				CreatedAt: last.CreatedAt,
			}
		}
	}

	return summary, nil
}

// GetMessages returns one history page for user, oldest first within the
// page.
func (s *Service) GetMessages(ctx context.Context, user, conversationID uuid.UUID, page, limit int) ([]messages.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasMember(user) {
		return nil, conversations.ErrNotMember
	}

	limit, offset := s.pageWindow(page, limit)
	msgs, err := s.messages.List(ctx, conversationID, user, limit, offset)
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		s.attachIdentities(ctx, &msgs[i])
	}

	return msgs, nil
}

// UnreadTotal sums user's unread counters across all conversations.
func (s *Service) UnreadTotal(ctx context.Context, user uuid.UUID) (int64, error) {
	return s.conversations.UnreadTotal(ctx, user)
}

// EnsureMember gates room joins on the live channel.
func (s *Service) EnsureMember(ctx context.Context, user, conversationID uuid.UUID) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasMember(user) {
		return conversations.ErrNotMember
	}
	return nil
}

func (s *Service) pageWindow(page, limit int) (int, int) {
	if limit <= 0 {
		limit = s.limits.DefaultPageLimit
	}
	if limit > s.limits.MaxPageLimit {
		limit = s.limits.MaxPageLimit
	}
	if page <= 1 {
		return limit, 0
	}
	return limit, (page - 1) * limit
}

// attachIdentities decorates a message with display identities. Resolution
// failures are tolerated: the ids are always present.
func (s *Service) attachIdentities(ctx context.Context, m *messages.Message) {
	if sender, err := s.directory.ResolveUser(ctx, m.SenderID); err == nil {
		m.Sender = &sender
	}
	if receiver, err := s.directory.ResolveUser(ctx, m.ReceiverID); err == nil {
		m.Receiver = &receiver
	}
}
