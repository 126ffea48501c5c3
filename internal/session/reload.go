package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/turngate/turngate/internal/protocol"
)

// Reload tears down and reconstructs the agent's completion client via the
// provider registry, preserving the in-progress conversation, model, and
// system prompt. This is the optional hot-reload path: useful after
// rotating credentials or changing provider endpoint configuration without
// dropping connected clients or the conversation so far.
func (s *Session) Reload(ctx context.Context) {
	s.Broadcast(protocol.ReloadStartMessage())

	providerName := s.agent.ProviderName()
	model := s.agent.Model()

	newProv, err := s.providerRegistry.Create(providerName, model, s.providerOpts)
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("session: reload failed to create provider")
		s.Broadcast(protocol.ReloadEndMessage(false, fmt.Sprintf("reload failed: %v", err)))
		return
	}

	if err := s.agent.SwapProvider(newProv, providerName); err != nil {
		log.Warn().Err(err).Msg("session: error closing previous provider during reload")
	}

	s.Broadcast(protocol.ReloadEndMessage(true, "reloaded"))
}
