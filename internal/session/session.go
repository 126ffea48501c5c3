// Package session binds an arbitrary number of connected clients to a
// single agent instance: it serializes prompt admission, fans out every
// emitted event to all connected clients, and dispatches the rest of the
// client protocol (steer/abort/context_request/model_list_request).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/turngate/turngate/internal/agent"
	"github.com/turngate/turngate/internal/events"
	"github.com/turngate/turngate/internal/protocol"
	"github.com/turngate/turngate/internal/provider"
)

// Client is anything a Session can send a serialized message to — normally
// one WebSocket connection.
type Client interface {
	Send(msg []byte) error
}

const modelCatalogTTL = 30 * time.Second

// Session owns the client set and the single agent all of them share.
type Session struct {
	agent *agent.Agent

	providerRegistry *provider.Registry
	providerOpts     provider.Options

	mu      sync.Mutex
	clients map[Client]struct{}

	promptMu sync.Mutex

	catalogMu      sync.Mutex
	catalog        []provider.TaggedModel
	catalogFetched time.Time
}

// New builds a Session around an already-constructed agent. The agent's
// EventSink should broadcast through this Session — see BroadcastEvent.
func New(a *agent.Agent, providerRegistry *provider.Registry, opts provider.Options) *Session {
	return &Session{
		agent:            a,
		providerRegistry: providerRegistry,
		providerOpts:     opts,
		clients:          make(map[Client]struct{}),
	}
}

// AddClient registers a newly connected client.
func (s *Session) AddClient(c Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	log.Info().Int("clients", n).Msg("session: client connected")
}

// RemoveClient evicts a client, normally called once its read loop observes
// the connection closing.
func (s *Session) RemoveClient(c Client) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	log.Info().Int("clients", n).Msg("session: client disconnected")
}

// Broadcast sends msg to every connected client concurrently. Per-client
// send errors are tolerated — eviction happens when that connection's read
// loop observes the closure, not here.
func (s *Session) Broadcast(msg []byte) {
	s.mu.Lock()
	clients := make([]Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c Client) {
			defer wg.Done()
			if err := c.Send(msg); err != nil {
				log.Debug().Err(err).Msg("session: broadcast send failed")
			}
		}(c)
	}
	wg.Wait()
}

// BroadcastEvent serializes an agent event and broadcasts it. Wire this as
// the agent's EventSink.
func (s *Session) BroadcastEvent(e events.Event) {
	data, err := e.MarshalJSON()
	if err != nil {
		log.Error().Err(err).Msg("session: could not marshal event")
		return
	}
	s.Broadcast(data)
}

// HandleClientMessage parses and dispatches one inbound client message.
func (s *Session) HandleClientMessage(ctx context.Context, from Client, data []byte) {
	log.Debug().Str("data", string(data)).Msg("session: client message")

	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		_ = from.Send(protocol.ErrorMessage(err.Error()))
		return
	}

	switch msg.Type {
	case protocol.Prompt:
		s.handlePrompt(ctx, msg.Message)
	case protocol.Steer:
		s.handleSteer(ctx, msg.Message)
	case protocol.Abort:
		s.agent.Abort()
	case protocol.ContextRequest:
		_ = from.Send(protocol.ContextInfoMessage(s.agent.ContextInfo()))
	case protocol.ModelListRequest:
		models, current := s.modelCatalog(ctx)
		_ = from.Send(protocol.ModelListMessage(models, current))
	}
}

func (s *Session) handlePrompt(ctx context.Context, message string) {
	// Broadcast the echo before acquiring the prompt mutex, so late-arriving
	// clients see what was sent even if a prior prompt is still running.
	s.Broadcast(protocol.UserMessage(message))

	s.promptMu.Lock()
	defer s.promptMu.Unlock()

	if err := s.agent.Prompt(ctx, message); err != nil {
		s.Broadcast(protocol.ErrorMessage(err.Error()))
	}
}

func (s *Session) handleSteer(ctx context.Context, message string) {
	if message == "/reload" {
		s.Reload(ctx)
		return
	}
	known := s.modelCatalogEntries(ctx)
	s.agent.Steer(ctx, message, known)
}

// modelCatalog returns (model names, current model), refreshing the cached
// catalog if it's gone stale.
func (s *Session) modelCatalog(ctx context.Context) ([]string, string) {
	s.refreshCatalog(ctx)

	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	names := make([]string, len(s.catalog))
	for i, m := range s.catalog {
		names[i] = m.Model.Name
	}
	return names, s.agent.Model()
}

func (s *Session) modelCatalogEntries(ctx context.Context) []events.ModelEntry {
	s.refreshCatalog(ctx)

	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	out := make([]events.ModelEntry, len(s.catalog))
	for i, m := range s.catalog {
		out[i] = events.ModelEntry{Provider: m.ProviderName, Name: m.Model.Name}
	}
	return out
}

func (s *Session) refreshCatalog(ctx context.Context) {
	s.catalogMu.Lock()
	stale := time.Since(s.catalogFetched) > modelCatalogTTL
	s.catalogMu.Unlock()
	if !stale {
		return
	}

	catalog := s.providerRegistry.ListAllModels(ctx, s.providerOpts)

	s.catalogMu.Lock()
	s.catalog = catalog
	s.catalogFetched = time.Now()
	s.catalogMu.Unlock()
}
