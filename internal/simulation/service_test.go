package simulation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/simulation"
	"github.com/transportco2/transportco2/internal/validation"
)

type fakeBackend struct {
	submitted []co2api.Simulation
	tokens    []string
	submitErr error
	history   []co2api.Simulation
	userID    int64
}

func (f *fakeBackend) SubmitSimulation(_ context.Context, token string, sim co2api.Simulation) error {
	f.tokens = append(f.tokens, token)
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, sim)
	return nil
}

func (f *fakeBackend) ListSimulations(_ context.Context, token string, userID int64) ([]co2api.Simulation, error) {
	f.tokens = append(f.tokens, token)
	f.userID = userID
	return f.history, nil
}

type fixture struct {
	svc     *simulation.Service
	store   *session.MemoryStore
	backend *fakeBackend
	events  *events.Recorder
	sid     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := session.NewMemoryStore()
	sess := session.New("backend-token", session.User{ID: 12, Name: "Alice", Role: "normal"}, time.Hour)
	require.NoError(t, store.Create(context.Background(), sess))

	backend := &fakeBackend{}
	rec := events.NewRecorder(nil)
	svc := simulation.NewService(simulation.Config{
		Store:     store,
		Backend:   backend,
		Publisher: rec,
		Logger:    zerolog.Nop(),
	})
	return &fixture{svc: svc, store: store, backend: backend, events: rec, sid: sess.ID}
}

func TestService_TripLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.AddTrip(ctx, fx.sid, simulation.TripInput{Origin: " Paris ", Destination: "Lyon", Mode: "Voiture", CO2: 1200})
	require.NoError(t, err)
	assert.Regexp(t, `^trp_`, a.ID)
	assert.Equal(t, "Paris", a.Origin)
	assert.Equal(t, session.FrequencyDaily, a.Frequency)

	b, err := fx.svc.AddTrip(ctx, fx.sid, simulation.TripInput{Origin: "Paris", Destination: "Lyon", Mode: "Train", CO2: 30, Frequency: session.FrequencyWeekly})
	require.NoError(t, err)

	trips, err := fx.svc.ListTrips(ctx, fx.sid)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, a.ID, trips[0].ID)
	assert.Equal(t, b.ID, trips[1].ID)

	require.NoError(t, fx.svc.RemoveTrip(ctx, fx.sid, a.ID))
	assert.ErrorIs(t, fx.svc.RemoveTrip(ctx, fx.sid, a.ID), simulation.ErrTripNotFound)

	trips, err = fx.svc.ListTrips(ctx, fx.sid)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, b.ID, trips[0].ID)

	sum, err := fx.svc.Summary(ctx, fx.sid, 7)
	require.NoError(t, err)
	require.Len(t, sum.Trips, 1)
	assert.Equal(t, 30.0, sum.Total[6])

	require.NoError(t, fx.svc.ClearTrips(ctx, fx.sid))
	trips, err = fx.svc.ListTrips(ctx, fx.sid)
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestService_AddTrip_Validation(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name  string
		in    simulation.TripInput
		field string
	}{
		{"missing origin", simulation.TripInput{Destination: "Lyon", Mode: "Bus"}, "origin"},
		{"missing mode", simulation.TripInput{Origin: "Paris", Destination: "Lyon"}, "mode"},
		{"negative co2", simulation.TripInput{Origin: "Paris", Destination: "Lyon", Mode: "Bus", CO2: -1}, "co2"},
		{"bad frequency", simulation.TripInput{Origin: "Paris", Destination: "Lyon", Mode: "Bus", Frequency: "yearly"}, "frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.AddTrip(context.Background(), fx.sid, tt.in)
			verr, ok := validation.AsError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestService_AddTrip_Limit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < simulation.MaxTrips; i++ {
		_, err := fx.svc.AddTrip(ctx, fx.sid, simulation.TripInput{Origin: "A", Destination: fmt.Sprintf("B%d", i), Mode: "Bus"})
		require.NoError(t, err)
	}

	_, err := fx.svc.AddTrip(ctx, fx.sid, simulation.TripInput{Origin: "A", Destination: "C", Mode: "Bus"})
	assert.ErrorIs(t, err, simulation.ErrTooManyTrips)
}

// laggyStore delays reads the way a networked store would.
type laggyStore struct {
	session.Store
}

func (s laggyStore) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.Store.Get(ctx, id)
	time.Sleep(2 * time.Millisecond)
	return sess, err
}

func TestService_AddTrip_Concurrent(t *testing.T) {
	store := laggyStore{Store: session.NewMemoryStore()}
	sess := session.New("backend-token", session.User{ID: 12, Role: "normal"}, time.Hour)
	require.NoError(t, store.Create(context.Background(), sess))
	svc := simulation.NewService(simulation.Config{
		Store:     store,
		Backend:   &fakeBackend{},
		Publisher: events.NewRecorder(nil),
		Logger:    zerolog.Nop(),
	})

	const attempts = simulation.MaxTrips + 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		added    int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddTrip(context.Background(), sess.ID, simulation.TripInput{Origin: "A", Destination: fmt.Sprintf("B%d", i), Mode: "Bus"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case errors.Is(err, simulation.ErrTooManyTrips):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, simulation.MaxTrips, added)
	assert.Equal(t, 10, rejected)

	trips, err := svc.ListTrips(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, trips, simulation.MaxTrips)
}

func TestService_UnknownSession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.AddTrip(ctx, "ses_missing", simulation.TripInput{Origin: "A", Destination: "B", Mode: "Bus"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = fx.svc.ListTrips(ctx, "ses_missing")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = fx.svc.Submit(ctx, "ses_missing", simulation.SubmitInput{Origin: "A", Destination: "B", Mode: "Bus", DurationDays: 1})
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestService_Submit(t *testing.T) {
	fx := newFixture(t)

	sim, err := fx.svc.Submit(context.Background(), fx.sid, simulation.SubmitInput{
		Origin:       "Paris",
		Destination:  "Lyon",
		Mode:         "Voiture",
		CO2:          700,
		Frequency:    session.FrequencyWeekly,
		DurationDays: 28,
	})
	require.NoError(t, err)

	assert.Equal(t, 2800.0, sim.TotalEmission)
	require.Len(t, fx.backend.submitted, 1)
	sent := fx.backend.submitted[0]
	assert.Equal(t, int64(12), sent.UserID)
	assert.Equal(t, "weekly", sent.Frequency)
	assert.Equal(t, 28, sent.DurationDays)
	assert.Equal(t, []string{"backend-token"}, fx.backend.tokens)

	published := fx.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeSimulationSubmitted, published[0].Type)
}

func TestService_Submit_BackendFailure(t *testing.T) {
	fx := newFixture(t)
	fx.backend.submitErr = &co2api.Error{Op: "submit_simulation", Err: co2api.ErrUnavailable}

	_, err := fx.svc.Submit(context.Background(), fx.sid, simulation.SubmitInput{
		Origin: "Paris", Destination: "Lyon", Mode: "Bus", DurationDays: 10,
	})
	assert.ErrorIs(t, err, co2api.ErrUnavailable)
	assert.Empty(t, fx.events.Events())
}

func TestService_Submit_Validation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.Submit(context.Background(), fx.sid, simulation.SubmitInput{Origin: "Paris", Destination: "Lyon", Mode: "Bus"})
	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "durationDays", verr.Fields[0].Field)
	assert.Empty(t, fx.backend.submitted)
}

func TestService_History(t *testing.T) {
	fx := newFixture(t)
	fx.backend.history = []co2api.Simulation{{ID: 1, Origin: "Paris", Destination: "Lyon", TotalEmission: 12}}

	sims, err := fx.svc.History(context.Background(), fx.sid)
	require.NoError(t, err)
	require.Len(t, sims, 1)
	assert.Equal(t, int64(12), fx.backend.userID)
	assert.Equal(t, []string{"backend-token"}, fx.backend.tokens)
}
