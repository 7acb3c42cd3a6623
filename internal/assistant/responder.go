package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/conversation"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single generator call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNothingToAnswer is returned by Reply when every inbound message of
	// the contact has already been answered.
	ErrNothingToAnswer = errors.New("assistant: no pending user turn")
	// ErrStopped is returned once the responder has been stopped.
	ErrStopped = errors.New("assistant: responder stopped")
)

// Dispatcher hands an appended reply to the transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg conversation.Message) error
}

// ProfileSource supplies the active assistant profile.
type ProfileSource interface {
	Current() Profile
}

// Outcome labels how a reply cycle ended.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeFallback  Outcome = "fallback"
)

// Observer is told about every finished reply cycle.
type Observer interface {
	ObserveReply(outcome Outcome, latency time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveReply(Outcome, time.Duration) {}

// Config configures a Responder.
type Config struct {
	Core       *conversation.Core
	Generator  Generator
	Profiles   ProfileSource
	Dispatcher Dispatcher
	Observer   Observer
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Responder answers contacts. Each contact has one FIFO queue drained by a
// single goroutine, so at most one reply cycle per contact is in flight.
type Responder struct {
	core       *conversation.Core
	gen        Generator
	profiles   ProfileSource
	dispatcher Dispatcher
	observer   Observer
	timeout    time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string][]job
	// answered holds, per contact, the newest inbound sequence number a
	// reply cycle has covered.
	answered map[string]uint64
	closed   bool
}

type job struct {
	done chan result // nil for fire-and-forget submissions
}

type result struct {
	msg conversation.Message
	err error
}

// NewResponder creates a responder. Call Stop to release its workers.
func NewResponder(cfg Config) *Responder {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Responder{
		core:       cfg.Core,
		gen:        cfg.Generator,
		profiles:   cfg.Profiles,
		dispatcher: cfg.Dispatcher,
		observer:   cfg.Observer,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		ctx:        ctx,
		cancel:     cancel,
		queues:     make(map[string][]job),
		answered:   make(map[string]uint64),
	}
}

// Submit queues a reply cycle for contact and returns immediately.
func (r *Responder) Submit(contact string) error {
	return r.enqueue(contact, job{})
}

// Reply queues a reply cycle for contact and waits for its result. The reply
// is appended to the core whether it was generated or is the fallback text;
// Origin tells them apart.
func (r *Responder) Reply(ctx context.Context, contact string) (conversation.Message, error) {
	j := job{done: make(chan result, 1)}
	if err := r.enqueue(contact, j); err != nil {
		return conversation.Message{}, err
	}
	select {
	case res := <-j.done:
		return res.msg, res.err
	case <-ctx.Done():
		return conversation.Message{}, ctx.Err()
	}
}

// Stop cancels in-flight generator calls and waits for all workers to exit.
func (r *Responder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func (r *Responder) enqueue(contact string, j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrStopped
	}
	q, running := r.queues[contact]
	r.queues[contact] = append(q, j)
	if !running {
		r.wg.Add(1)
		go r.drain(contact)
	}
	return nil
}

// next pops the contact's oldest job. The queue entry is removed when empty
// so the next enqueue starts a fresh worker.
func (r *Responder) next(contact string) (job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queues[contact]
	if len(q) == 0 || r.closed {
		for _, j := range q {
			if j.done != nil {
				j.done <- result{err: ErrStopped}
			}
		}
		delete(r.queues, contact)
		return job{}, false
	}
	r.queues[contact] = q[1:]
	return q[0], true
}

func (r *Responder) drain(contact string) {
	defer r.wg.Done()
	for {
		j, ok := r.next(contact)
		if !ok {
			return
		}
		msg, err := r.cycle(contact)
		if j.done != nil {
			j.done <- result{msg: msg, err: err}
		} else if err != nil && !errors.Is(err, ErrNothingToAnswer) {
			r.logger.Error("reply cycle failed", zap.Error(err), zap.String("contact", contact))
		}
	}
}

// owed returns the newest inbound sequence number of contact still waiting
// for a reply and the bodies of the unanswered inbound messages. A zero
// sequence means nothing is owed. Operator messages answer everything
// before them. Until the responder has answered a contact, any outbound
// message does, which covers conversations restored from the journal.
func (r *Responder) owed(contact string) (uint64, []string) {
	msgs := r.core.Store().ForContact(contact)

	r.mu.Lock()
	mark, seen := r.answered[contact]
	r.mu.Unlock()

	var last uint64
	for _, m := range msgs {
		switch {
		case m.Direction == conversation.Inbound:
			last = m.Seq
		case m.Origin == conversation.OriginOperator || !seen:
			mark = max(mark, last)
		}
	}
	if last <= mark {
		return 0, nil
	}
	var bodies []string
	for _, m := range msgs {
		if m.Direction == conversation.Inbound && m.Seq > mark {
			bodies = append(bodies, m.Body)
		}
	}
	return last, bodies
}

func (r *Responder) markAnswered(contact string, seq uint64) {
	r.mu.Lock()
	r.answered[contact] = max(r.answered[contact], seq)
	r.mu.Unlock()
}

// cycle runs one build-prompt, generate, append, dispatch round for contact.
func (r *Responder) cycle(contact string) (conversation.Message, error) {
	profile := r.profiles.Current()

	upTo, pending := r.owed(contact)
	if upTo == 0 {
		return conversation.Message{}, ErrNothingToAnswer
	}
	turns := r.core.Window().BuildPrompt(contact, profile.SystemPrompt)
	if turns[len(turns)-1].Role != conversation.RoleUser {
		// A reply to an earlier message landed after these arrived, or the
		// history was cleared: restate what is still unanswered.
		turns = append(turns, conversation.Turn{Role: conversation.RoleUser, Text: strings.Join(pending, "\n")})
	}

	start := time.Now()
	text, genErr := r.generate(profile, turns)
	origin := conversation.OriginAssistant
	outcome := OutcomeGenerated
	if genErr != nil {
		r.logger.Warn("reply generation failed, sending fallback",
			zap.Error(genErr),
			zap.String("contact", contact),
		)
		text = profile.FallbackMessage
		origin = conversation.OriginFallback
		outcome = OutcomeFallback
	}
	r.observer.ObserveReply(outcome, time.Since(start))

	reply, err := r.core.Append(conversation.Message{
		Contact:   contact,
		Body:      text,
		Direction: conversation.Outbound,
		Origin:    origin,
	})
	if err != nil {
		return conversation.Message{}, err
	}
	r.markAnswered(contact, upTo)

	if r.dispatcher != nil {
		if err := r.dispatcher.Dispatch(r.ctx, reply); err != nil {
			r.logger.Error("dispatch reply failed", zap.Error(err), zap.String("msg_id", reply.ID))
			if updated, uerr := r.core.UpdateStatus(reply.ID, conversation.StatusFailed); uerr == nil {
				reply = updated
			}
		}
	}
	return reply, nil
}

func (r *Responder) generate(profile Profile, turns []conversation.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	resp, err := r.gen.Generate(ctx, Request{
		Model:       profile.Model,
		Turns:       turns,
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &UpstreamError{Provider: "generator", Timeout: true, Err: err}
		}
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", &EmptyResponseError{Provider: "generator"}
	}
	return text, nil
}
