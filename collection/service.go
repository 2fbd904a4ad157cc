package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/generic"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// EventSink receives engine events after the new state is persisted
// (typically the rewards program).
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

type NoticeKind string

const (
	NoticeSuccess  NoticeKind = "success"
	NoticeFailure  NoticeKind = "failure"
	NoticeReminder NoticeKind = "reminder"
)

// Notice is an advisory, human-readable message for the notification
// collaborator.
type Notice struct {
	Kind        NoticeKind
	AgreementID AgreementID
	Message     string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// =============================================================================
// SERVICE - Load, apply, save, publish
// =============================================================================

// Service runs engine operations against the repository with optimistic
// read-modify-write per agreement. Events are forwarded only after the save
// succeeded; a failed publish is logged and does not undo the save.
type Service struct {
	Repo     Repository
	Engine   *Engine
	Events   EventSink // optional
	Notifier Notifier  // optional
	Clock    generic.Clock
	Log      logrus.FieldLogger
}

func NewService(repo Repository, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Repo:   repo,
		Engine: NewEngine(),
		Clock:  generic.SystemClock(time.Local),
		Log:    log,
	}
}

// Result is what a successful operation hands back to the caller.
type Result struct {
	Snapshot Snapshot
	Events   []Event
	Created  []OccurrenceID
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

// Now is the service's current instant.
func (s *Service) Now() time.Time {
	return s.now()
}

// Today is the service's current calendar day.
func (s *Service) Today() generic.Date {
	return generic.DateOf(s.now())
}

// CreateAgreement stores a new pending agreement. An empty id is filled in.
func (s *Service) CreateAgreement(ctx context.Context, a Agreement) (Snapshot, error) {
	if a.ID == "" {
		a.ID = AgreementID(uuid.NewString())
	}
	now := s.now()
	a.Status = AgreementPending
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := ValidateAgreement(a); err != nil {
		return Snapshot{}, err
	}

	snap, err := s.Repo.Create(ctx, a)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create agreement %s: %w", a.ID, err)
	}
	s.Log.WithFields(logrus.Fields{"agreement_id": a.ID, "frequency": a.Frequency}).Info("agreement created")
	return snap, nil
}

// Get loads one agreement.
func (s *Service) Get(ctx context.Context, id AgreementID) (Snapshot, error) {
	return s.Repo.Load(ctx, id)
}

// List loads every agreement with status; empty means all.
func (s *Service) List(ctx context.Context, status AgreementStatus) ([]Snapshot, error) {
	return s.Repo.List(ctx, status)
}

// Timeline loads one agreement and classifies its occurrences as of today.
func (s *Service) Timeline(ctx context.Context, id AgreementID) (Snapshot, Timeline, error) {
	snap, err := s.Repo.Load(ctx, id)
	if err != nil {
		return Snapshot{}, Timeline{}, err
	}
	return snap, snap.Timeline(s.Today()), nil
}

func (s *Service) Accept(ctx context.Context, id AgreementID) (*Result, error) {
	return s.apply(ctx, id, "accept", "Recurring collection accepted", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.AcceptAgreement(snap, now)
	})
}

func (s *Service) Decline(ctx context.Context, id AgreementID, reason string) (*Result, error) {
	return s.apply(ctx, id, "decline", "Recurring collection declined", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.DeclineAgreement(snap, reason, now)
	})
}

func (s *Service) Register(ctx context.Context, id AgreementID, in RegisterInput) (*Result, error) {
	return s.apply(ctx, id, "register", "Collection registered", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.RegisterCollection(snap, in, now)
	})
}

func (s *Service) Edit(ctx context.Context, id AgreementID, in EditInput) (*Result, error) {
	return s.apply(ctx, id, "edit", "Pending collection updated", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.EditPendingOccurrence(snap, in, now)
	})
}

func (s *Service) CancelOccurrence(ctx context.Context, id AgreementID, in CancelInput) (*Result, error) {
	return s.apply(ctx, id, "cancel", "Collection cancelled", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.CancelOccurrence(snap, in, now)
	})
}

func (s *Service) CancelAgreement(ctx context.Context, id AgreementID, in CancelAgreementInput) (*Result, error) {
	return s.apply(ctx, id, "cancel_agreement", "Recurring collection cancelled", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.CancelAgreement(snap, in, now)
	})
}

func (s *Service) Rate(ctx context.Context, id AgreementID, in RatingInput) (*Result, error) {
	return s.apply(ctx, id, "rate", "Rating submitted", func(snap Snapshot, now time.Time) (*Transition, error) {
		return s.Engine.SubmitRating(snap, in, now)
	})
}

func (s *Service) apply(
	ctx context.Context,
	id AgreementID,
	op string,
	success string,
	fn func(Snapshot, time.Time) (*Transition, error),
) (*Result, error) {
	log := s.Log.WithFields(logrus.Fields{"agreement_id": id, "op": op})

	snap, err := s.Repo.Load(ctx, id)
	if err != nil {
		s.notify(ctx, NoticeFailure, id, err)
		return nil, err
	}

	now := s.now()
	t, err := fn(snap, now)
	if err != nil {
		log.WithError(err).Debug("operation rejected")
		s.notify(ctx, NoticeFailure, id, err)
		return nil, err
	}

	version, err := s.Repo.Save(ctx, t, snap.Version)
	if err != nil {
		log.WithError(err).Warn("failed to save transition")
		s.notify(ctx, NoticeFailure, id, err)
		return nil, fmt.Errorf("%s: save agreement %s: %w", op, id, err)
	}

	if len(t.Events) > 0 && s.Events != nil {
		if err := s.Events.Publish(ctx, t.Events); err != nil {
			log.WithError(err).Warn("failed to publish events")
		}
	}

	log.WithFields(logrus.Fields{
		"version": version,
		"events":  len(t.Events),
		"created": len(t.Created),
	}).Info("transition applied")

	msg := success
	for _, ev := range t.Events {
		if ev.Type == EventOccurrenceCancelled && ev.Penalty {
			msg += " (late cancellation, penalty applied)"
			break
		}
	}
	s.notifyText(ctx, NoticeSuccess, id, msg)

	return &Result{Snapshot: t.Snapshot(version), Events: t.Events, Created: t.Created}, nil
}

func (s *Service) notify(ctx context.Context, kind NoticeKind, id AgreementID, err error) {
	s.notifyText(ctx, kind, id, err.Error())
}

func (s *Service) notifyText(ctx context.Context, kind NoticeKind, id AgreementID, msg string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(ctx, Notice{Kind: kind, AgreementID: id, Message: msg})
}
