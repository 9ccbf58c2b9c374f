package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/feedgate/internal/domain"
	"github.com/eliteGoblin/focusd/feedgate/internal/metrics"
)

const (
	maxSignalLine    = 64 * 1024
	intentBufferSize = 256
)

// DecodeSignal parses one JSON-lines signal record.
func DecodeSignal(line []byte) (domain.Signal, error) {
	var sig domain.Signal
	if err := json.Unmarshal(line, &sig); err != nil {
		return domain.Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	switch sig.Kind {
	case domain.SignalForeground, domain.SignalContent, domain.SignalDismiss,
		domain.SignalAnswer, domain.SignalCancel, domain.SignalForce:
	default:
		return domain.Signal{}, fmt.Errorf("decode signal: unknown type %q", sig.Kind)
	}
	return sig, nil
}

// ReadSignals decodes one signal per line from r and sends it to out.
// Malformed lines are logged and skipped. Returns nil at EOF.
func ReadSignals(ctx context.Context, r io.Reader, out chan<- domain.Signal, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxSignalLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sig, err := DecodeSignal([]byte(line))
		if err != nil {
			logger.Warn("skipping signal", zap.String("line", line), zap.Error(err))
			continue
		}
		select {
		case out <- sig:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read signals: %w", err)
	}
	return nil
}

// JSONLSink is a domain.IntentSink that writes one JSON object per line.
// Emit only queues; Run does the writing, so a slow reader never stalls the gate.
// Once the backlog reaches its limit, a new intent replaces any queued intent
// it supersedes (same app, same overlay slot) instead of being dropped.
type JSONLSink struct {
	mu      sync.Mutex
	pending []domain.Intent
	limit   int
	wake    chan struct{}

	w      io.Writer
	logger *zap.Logger
}

// NewJSONLSink creates a sink writing to w.
func NewJSONLSink(w io.Writer, logger *zap.Logger) *JSONLSink {
	return &JSONLSink{
		limit:  intentBufferSize,
		wake:   make(chan struct{}, 1),
		w:      w,
		logger: logger,
	}
}

// Emit queues an intent. It never blocks.
func (s *JSONLSink) Emit(intent domain.Intent) {
	s.mu.Lock()
	if len(s.pending) >= s.limit {
		kept, replaced := supersede(s.pending, intent)
		s.pending = kept
		if replaced > 0 {
			metrics.IntentsCoalesced(replaced)
			s.logger.Debug("intent backlog full, collapsed superseded intents",
				zap.String("kind", string(intent.Kind)),
				zap.String("app", intent.AppID),
				zap.Int("replaced", replaced))
		}
	}
	s.pending = append(s.pending, intent)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued intents.
func (s *JSONLSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run writes queued intents until ctx is done, then flushes what is left.
func (s *JSONLSink) Run(ctx context.Context) error {
	enc := json.NewEncoder(s.w)
	for {
		select {
		case <-s.wake:
			if err := s.flush(enc); err != nil {
				return err
			}
		case <-ctx.Done():
			return s.flush(enc)
		}
	}
}

func (s *JSONLSink) flush(enc *json.Encoder) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, intent := range batch {
		if err := enc.Encode(intent); err != nil {
			return fmt.Errorf("write intent: %w", err)
		}
	}
	return nil
}

// intentSlot groups intents where only the newest matters to the renderer.
func intentSlot(kind domain.IntentKind) string {
	switch kind {
	case domain.IntentShow, domain.IntentHide:
		return "overlay"
	default:
		return string(kind)
	}
}

// supersede removes queued intents for the same app and slot as next.
func supersede(queue []domain.Intent, next domain.Intent) ([]domain.Intent, int) {
	slot := intentSlot(next.Kind)
	kept := queue[:0]
	for _, queued := range queue {
		if queued.AppID == next.AppID && intentSlot(queued.Kind) == slot {
			continue
		}
		kept = append(kept, queued)
	}
	return kept, len(queue) - len(kept)
}

// Ensure JSONLSink implements domain.IntentSink.
var _ domain.IntentSink = (*JSONLSink)(nil)
