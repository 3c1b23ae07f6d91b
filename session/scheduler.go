package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	redline "github.com/redlinehq/redline-go"
)

// Default debounce windows. Saving waits longer than checking so a
// compliance verdict can arrive while the user is still pausing.
const (
	DefaultSaveDelay  = 1000 * time.Millisecond
	DefaultCheckDelay = 800 * time.Millisecond
)

// SaveState tracks the autosave lifecycle of one paragraph.
type SaveState int

const (
	SaveIdle SaveState = iota
	SavePending
	SaveInFlight
	SaveDone
	SaveFailed
)

// String returns the state name.
func (st SaveState) String() string {
	switch st {
	case SavePending:
		return "pending"
	case SaveInFlight:
		return "saving"
	case SaveDone:
		return "saved"
	case SaveFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CheckState tracks the compliance check lifecycle of one paragraph.
type CheckState int

const (
	CheckIdle CheckState = iota
	CheckPending
	CheckInFlight
	CheckDone
	CheckFailed
)

// String returns the state name.
func (st CheckState) String() string {
	switch st {
	case CheckPending:
		return "pending"
	case CheckInFlight:
		return "checking"
	case CheckDone:
		return "checked"
	case CheckFailed:
		return "failed"
	default:
		return "idle"
	}
}

type schedEntry struct {
	text       string
	seq        uint64
	saveTimer  *time.Timer
	checkTimer *time.Timer
	saveState  SaveState
	checkState CheckState
}

// Scheduler turns a keystroke stream into debounced autosaves and
// compliance checks, per paragraph. Each keystroke stages text into the
// session immediately and restarts both timers; only the final text of
// a typing burst reaches the network.
//
// Every keystroke bumps a per-paragraph sequence number, and a response
// is applied only when its sequence is still the latest for that
// paragraph. A slow response from an earlier burst can therefore never
// overwrite the outcome of a later one.
type Scheduler struct {
	api        API
	session    *Session
	saveDelay  time.Duration
	checkDelay time.Duration
	log        zerolog.Logger

	onSave       func(paragraphID int, state SaveState)
	onCompliance func(paragraphID int, check *redline.ComplianceCheck)
	onVersion    func(newVersionID int)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopped  bool
	entries  map[int]*schedEntry
	stopOnce sync.Once
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSaveDelay overrides the autosave debounce window.
func WithSaveDelay(d time.Duration) SchedulerOption {
	return func(sc *Scheduler) {
		sc.saveDelay = d
	}
}

// WithCheckDelay overrides the compliance check debounce window.
func WithCheckDelay(d time.Duration) SchedulerOption {
	return func(sc *Scheduler) {
		sc.checkDelay = d
	}
}

// WithOnSave sets a hook invoked on every save state transition.
func WithOnSave(fn func(paragraphID int, state SaveState)) SchedulerOption {
	return func(sc *Scheduler) {
		sc.onSave = fn
	}
}

// WithOnCompliance sets a hook invoked with each applied compliance
// result.
func WithOnCompliance(fn func(paragraphID int, check *redline.ComplianceCheck)) SchedulerOption {
	return func(sc *Scheduler) {
		sc.onCompliance = fn
	}
}

// WithOnVersion sets a hook invoked when a save or check response
// promotes the document to a new version.
func WithOnVersion(fn func(newVersionID int)) SchedulerOption {
	return func(sc *Scheduler) {
		sc.onVersion = fn
	}
}

// WithSchedulerLogger sets a structured logger.
func WithSchedulerLogger(log zerolog.Logger) SchedulerOption {
	return func(sc *Scheduler) {
		sc.log = log
	}
}

// NewScheduler creates a scheduler driving autosave and compliance
// checks for a session.
func NewScheduler(api API, sess *Session, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	sc := &Scheduler{
		api:          api,
		session:      sess,
		saveDelay:    DefaultSaveDelay,
		checkDelay:   DefaultCheckDelay,
		log:          zerolog.Nop(),
		onSave:       func(int, SaveState) {},
		onCompliance: func(int, *redline.ComplianceCheck) {},
		onVersion:    func(int) {},
		ctx:          ctx,
		cancel:       cancel,
		entries:      make(map[int]*schedEntry),
	}

	for _, opt := range opts {
		opt(sc)
	}

	return sc
}

// Keystroke stages new text for a paragraph and restarts its debounce
// timers. The compliance timer is armed only for paragraphs that carry
// comments; uncommented paragraphs save without checking.
func (sc *Scheduler) Keystroke(paragraphID int, text string) error {
	if err := sc.session.StageEdit(paragraphID, text); err != nil {
		return err
	}

	hasComments := sc.session.ParagraphHasComments(paragraphID)

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.stopped {
		return nil
	}

	e := sc.entries[paragraphID]
	if e == nil {
		e = &schedEntry{}
		sc.entries[paragraphID] = e
	}
	e.seq++
	e.text = text
	seq := e.seq

	if e.saveTimer != nil {
		e.saveTimer.Stop()
	}
	e.saveState = SavePending
	e.saveTimer = time.AfterFunc(sc.saveDelay, func() {
		sc.fireSave(paragraphID, seq)
	})
	sc.onSave(paragraphID, SavePending)

	if hasComments {
		if e.checkTimer != nil {
			e.checkTimer.Stop()
		}
		e.checkState = CheckPending
		e.checkTimer = time.AfterFunc(sc.checkDelay, func() {
			sc.fireCheck(paragraphID, seq)
		})
	}

	return nil
}

func (sc *Scheduler) fireSave(paragraphID int, seq uint64) {
	sc.mu.Lock()
	e := sc.entries[paragraphID]
	// A timer callback that lost the race against Flush arrives here
	// with the save already in flight or done; only a pending entry
	// may start a request.
	if sc.stopped || e == nil || e.seq != seq || e.saveState != SavePending {
		sc.mu.Unlock()
		return
	}
	text := e.text
	e.saveState = SaveInFlight
	sc.mu.Unlock()
	sc.onSave(paragraphID, SaveInFlight)

	sc.save(sc.ctx, paragraphID, seq, text)
}

func (sc *Scheduler) save(ctx context.Context, paragraphID int, seq uint64, text string) {
	docID := sc.session.DocumentID()

	result, err := sc.api.EditParagraph(ctx, docID, paragraphID, text)

	sc.mu.Lock()
	e := sc.entries[paragraphID]
	stale := sc.stopped || e == nil || e.seq != seq
	if !stale {
		if err != nil {
			e.saveState = SaveFailed
		} else {
			e.saveState = SaveDone
		}
	}
	sc.mu.Unlock()

	if stale {
		sc.log.Debug().Int("paragraph_id", paragraphID).Uint64("seq", seq).
			Msg("discarding stale save response")
		return
	}

	if err != nil {
		sc.log.Warn().Err(err).Int("paragraph_id", paragraphID).Msg("autosave failed")
		sc.session.notify(LevelError, "autosave failed, changes not persisted")
		sc.onSave(paragraphID, SaveFailed)
		return
	}

	sc.session.markSaved(docID)
	sc.onSave(paragraphID, SaveDone)

	if result.VersionCreated && result.NewVersionID != 0 {
		sc.promote(ctx, result.NewVersionID, result.VersionMessage)
	}
}

func (sc *Scheduler) fireCheck(paragraphID int, seq uint64) {
	sc.mu.Lock()
	e := sc.entries[paragraphID]
	if sc.stopped || e == nil || e.seq != seq {
		sc.mu.Unlock()
		return
	}
	text := e.text
	e.checkState = CheckInFlight
	sc.mu.Unlock()

	docID := sc.session.DocumentID()

	check, err := sc.api.CheckCompliance(sc.ctx, docID, paragraphID, text)

	sc.mu.Lock()
	e = sc.entries[paragraphID]
	stale := sc.stopped || e == nil || e.seq != seq
	if !stale {
		if err != nil {
			e.checkState = CheckFailed
		} else {
			e.checkState = CheckDone
		}
	}
	sc.mu.Unlock()

	if stale {
		sc.log.Debug().Int("paragraph_id", paragraphID).Uint64("seq", seq).
			Msg("discarding stale compliance response")
		return
	}

	if err != nil {
		sc.log.Warn().Err(err).Int("paragraph_id", paragraphID).Msg("compliance check failed")
		return
	}

	sc.session.ApplyScheduledDeletions(check)
	sc.onCompliance(paragraphID, check)

	if check.VersionCreated && check.NewVersionID != 0 {
		sc.promote(sc.ctx, check.NewVersionID, check.VersionMessage)
	}
}

func (sc *Scheduler) promote(ctx context.Context, newVersionID int, message string) {
	sc.log.Info().Int("version_id", newVersionID).Msg("document promoted to new version")
	if message != "" {
		sc.session.notify(LevelInfo, message)
	}
	if err := sc.session.Load(ctx, newVersionID); err != nil {
		sc.log.Warn().Err(err).Int("version_id", newVersionID).Msg("reload after version promotion failed")
		return
	}

	// Pending work targeted paragraph ids of the old version.
	sc.mu.Lock()
	for _, e := range sc.entries {
		if e.saveTimer != nil {
			e.saveTimer.Stop()
		}
		if e.checkTimer != nil {
			e.checkTimer.Stop()
		}
	}
	sc.entries = make(map[int]*schedEntry)
	sc.mu.Unlock()

	sc.onVersion(newVersionID)
}

// SaveStateFor returns the save state of a paragraph.
func (sc *Scheduler) SaveStateFor(paragraphID int) SaveState {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if e := sc.entries[paragraphID]; e != nil {
		return e.saveState
	}
	return SaveIdle
}

// CheckStateFor returns the compliance check state of a paragraph.
func (sc *Scheduler) CheckStateFor(paragraphID int) CheckState {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if e := sc.entries[paragraphID]; e != nil {
		return e.checkState
	}
	return CheckIdle
}

// Flush cancels pending save timers and persists their staged text
// immediately. Callers use it before export or teardown so no staged
// edit is lost to an unexpired debounce window.
func (sc *Scheduler) Flush(ctx context.Context) error {
	type pending struct {
		paragraphID int
		seq         uint64
		text        string
	}

	sc.mu.Lock()
	var work []pending
	for id, e := range sc.entries {
		if e.saveState != SavePending {
			continue
		}
		if e.saveTimer != nil {
			e.saveTimer.Stop()
		}
		e.saveState = SaveInFlight
		work = append(work, pending{paragraphID: id, seq: e.seq, text: e.text})
	}
	sc.mu.Unlock()

	for _, w := range work {
		sc.onSave(w.paragraphID, SaveInFlight)
		sc.save(ctx, w.paragraphID, w.seq, w.text)
	}

	for _, w := range work {
		if sc.SaveStateFor(w.paragraphID) == SaveFailed {
			return &FlushError{ParagraphID: w.paragraphID}
		}
	}
	return nil
}

// FlushError reports a paragraph whose staged text could not be
// persisted during Flush.
type FlushError struct {
	ParagraphID int
}

// Error implements the error interface.
func (e *FlushError) Error() string {
	return fmt.Sprintf("flush: save failed for paragraph %d", e.ParagraphID)
}

// Stop cancels every timer and in-flight request context. It is
// idempotent; after Stop no callback fires and no response is applied.
func (sc *Scheduler) Stop() {
	sc.stopOnce.Do(func() {
		sc.mu.Lock()
		sc.stopped = true
		for _, e := range sc.entries {
			if e.saveTimer != nil {
				e.saveTimer.Stop()
			}
			if e.checkTimer != nil {
				e.checkTimer.Stop()
			}
		}
		sc.mu.Unlock()
		sc.cancel()
	})
}
