package relay

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bigshanyao1/qwen-omni-proxy/metrics"
)

// onLivenessTick runs on the session's event loop at a fixed interval and
// performs the two liveness checks: inactivity teardown and bounded upstream
// reconnect. This is the only code path that issues reconnect attempts, so a
// dropped upstream produces exactly one attempt per interval.
func (s *Session) onLivenessTick() {
	if s.State() == stateTerminated {
		return
	}

	idle := time.Since(s.LastActivity())
	if idle > s.inactivityTimeout {
		log.Printf("Session %s: inactive for %s, terminating", s.ID, idle.Round(time.Second))
		metrics.InactivityTimeouts.Inc()
		s.teardown(websocket.ClosePolicyViolation, "Inactivity timeout")
		return
	}

	if !s.upstreamUp && !s.dialInFlight {
		log.Printf("Session %s: upstream down, issuing reconnect attempt", s.ID)
		metrics.ReconnectAttempts.Inc()
		s.startConnect()
	}
}
