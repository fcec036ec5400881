// README: Matching service: validates and saves preferences, evaluates the candidate pool, batch-writes edges, notifies.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"pickleheart/internal/ai"
	"pickleheart/internal/modules/friendship"
	"pickleheart/internal/modules/notify"
	"pickleheart/internal/modules/profile"
	"pickleheart/internal/types"
)

type prefsStore interface {
	GetPreferences(ctx context.Context, userID types.ID) (*Preferences, error)
	UpsertPreferences(ctx context.Context, p Preferences) error
	ListCandidates(ctx context.Context, userID types.ID) ([]Candidate, error)
}

type profileReader interface {
	Get(ctx context.Context, id types.ID) (*profile.Profile, error)
}

type edgeStore interface {
	ListForUser(ctx context.Context, userID types.ID) ([]friendship.Edge, error)
	InsertBatch(ctx context.Context, edges []friendship.Edge) ([]friendship.Edge, error)
}

type Service struct {
	store    prefsStore
	profiles profileReader
	edges    edgeStore
	notifier notify.Notifier
	greeter  ai.Greeter
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store prefsStore, profiles profileReader, edges edgeStore, notifier notify.Notifier, greeter ai.Greeter, log *zap.Logger) *Service {
	if greeter == nil {
		greeter = ai.StaticGreeter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		profiles: profiles,
		edges:    edges,
		notifier: notifier,
		greeter:  greeter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) GetPreferences(ctx context.Context, userID types.ID) (*Preferences, error) {
	return s.store.GetPreferences(ctx, userID)
}

// UpdatePreferences validates and saves the caller's preferences, then runs
// the matcher so the new mode takes effect at once.
func (s *Service) UpdatePreferences(ctx context.Context, userID types.ID, p Preferences) (*Preferences, *RunResult, error) {
	if userID == "" {
		return nil, nil, ErrBadRequest
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	p.UserID = userID
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertPreferences(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("save preferences: %w", err)
	}
	res, err := s.RunForUser(ctx, userID)
	if err != nil {
		return &p, nil, err
	}
	return &p, res, nil
}

// RunForUser evaluates the acting user against every candidate and writes
// all new edges in one batch. A user without preferences gets ErrNoPreferences.
func (s *Service) RunForUser(ctx context.Context, userID types.ID) (*RunResult, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	self, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, profile.ErrNotFound) {
		self = &profile.Profile{ID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	me := participant(*prefs, *self, now)

	candidates, err := s.store.ListCandidates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	existing, err := s.edges.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	connected := make(map[types.ID]struct{}, len(existing))
	for _, e := range existing {
		connected[e.Other(userID)] = struct{}{}
	}

	res := &RunResult{}
	var pending []friendship.Edge
	byID := make(map[types.ID]Participant, len(candidates)+1)
	byID[userID] = me
	for _, c := range candidates {
		if _, ok := connected[c.Prefs.UserID]; ok {
			continue
		}
		them := participant(c.Prefs, c.Profile, now)
		res.Evaluated++
		out := Evaluate(me, them)
		if out.Kind == KindNone {
			continue
		}
		byID[them.UserID] = them
		pending = append(pending, friendship.Edge{
			ID:          types.NewID(),
			RequesterID: out.Requester,
			AddresseeID: out.Addressee,
			Status:      out.Status(),
			CreatedAt:   now,
		})
	}

	created, err := s.edges.InsertBatch(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("insert friendships: %w", err)
	}
	res.Created = created
	if res.Created == nil {
		res.Created = []friendship.Edge{}
	}
	s.log.Info("matching run",
		zap.String("user_id", string(userID)),
		zap.Int("evaluated", res.Evaluated),
		zap.Int("created", len(created)),
	)

	for _, e := range created {
		s.announce(ctx, e, byID[e.RequesterID], byID[e.AddresseeID])
	}
	return res, nil
}

func participant(p Preferences, pf profile.Profile, now time.Time) Participant {
	out := Participant{
		UserID:      p.UserID,
		DisplayName: pf.DisplayName,
		Prefs:       p,
		Age:         pf.Age(now),
		Rating:      pf.DUPR,
	}
	if pf.Gender != nil {
		out.Gender = *pf.Gender
	}
	return out
}

func player(p Participant) ai.Player {
	return ai.Player{Name: p.DisplayName, Age: p.Age, Rating: p.Rating}
}

// announce notifies both users of an accepted edge, or the addressee of a pending one.
func (s *Service) announce(ctx context.Context, e friendship.Edge, requester, addressee Participant) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{"friendship_id": string(e.ID), "status": string(e.Status)}

	if e.Status == friendship.StatusAccepted {
		s.send(ctx, notify.Notification{
			UserID: e.AddresseeID, Level: notify.LevelSuccess, Title: "New friend",
			Body: fmt.Sprintf("You and %s are now friends.", nameOr(requester)), Data: data,
		})
		s.send(ctx, notify.Notification{
			UserID: e.RequesterID, Level: notify.LevelSuccess, Title: "New friend",
			Body: fmt.Sprintf("You and %s are now friends.", nameOr(addressee)), Data: data,
		})
		return
	}

	body, err := s.greeter.Intro(ctx, player(requester), player(addressee))
	if err != nil {
		s.log.Warn("draft intro", zap.String("friendship_id", string(e.ID)), zap.Error(err))
		body, _ = ai.StaticGreeter{}.Intro(ctx, player(requester), player(addressee))
	}
	s.send(ctx, notify.Notification{
		UserID: e.AddresseeID, Level: notify.LevelInfo, Title: "Friend request",
		Body: body, Data: data,
	})
}

func (s *Service) send(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notify user", zap.String("user_id", string(n.UserID)), zap.Error(err))
	}
}

func nameOr(p Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "a new player"
}
