package booking

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"flexify/models"
	"flexify/services/api"
)

// fakeDoer records requests and answers them with respond.
type fakeDoer struct {
	mu       sync.Mutex
	requests []api.Request
	respond  func(req api.Request, out any) error
}

func (d *fakeDoer) Send(ctx context.Context, req api.Request, out any) error {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	respond := d.respond
	d.mu.Unlock()
	if respond == nil {
		return nil
	}
	return respond(req, out)
}

// gatedSearcher answers per origin; origins with a gate block until it is
// closed.
type gatedSearcher struct {
	mu      sync.Mutex
	results map[models.Coordinates][]models.ProviderCandidate
	gates   map[models.Coordinates]chan struct{}
	calls   int
	err     error
}

func (s *gatedSearcher) Search(ctx context.Context, q SearchQuery) ([]models.ProviderCandidate, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gates[q.Origin]
	res := s.results[q.Origin]
	err := s.err
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

type fakeGeocoder map[string]models.Coordinates

func (g fakeGeocoder) Geocode(ctx context.Context, address string) (models.Coordinates, string, error) {
	c, ok := g[address]
	if !ok {
		return models.Coordinates{}, "", errors.New("no result")
	}
	return c, address, nil
}

type recordingReminders struct {
	mu       sync.Mutex
	payloads []models.ReminderPayload
}

func (r *recordingReminders) ScheduleReminder(ctx context.Context, p models.ReminderPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return nil
}

var (
	placeA = models.Coordinates{Lat: 19.0760, Lng: 72.8777}
	placeB = models.Coordinates{Lat: 18.5204, Lng: 73.8567}
)

func candidateNear(id string, c models.Coordinates) models.ProviderCandidate {
	return models.ProviderCandidate{ID: id, Category: "plumber", Rating: 4.5, TrustScore: 0.9, Location: c.Point()}
}

func newTestWizard(t *testing.T, deps WizardDeps) *Wizard {
	t.Helper()
	if deps.API == nil {
		deps.API = &fakeDoer{}
	}
	if deps.Searcher == nil {
		deps.Searcher = &gatedSearcher{}
	}
	if deps.Geocoder == nil {
		deps.Geocoder = fakeGeocoder{"Bandra West": placeA, "Pune": placeB}
	}
	w := NewWizard(deps, Seed{})
	t.Cleanup(w.Close)
	return w
}

// walkToConfirmation fills every stage and selects the top candidate.
func walkToConfirmation(t *testing.T, w *Wizard) {
	t.Helper()
	steps := []func() error{
		func() error { return w.SetCategory("plumber") },
		w.Next,
		func() error { return w.SetLocation(context.Background(), "Bandra West") },
		func() error { return w.SetSchedule("2030-05-14", "Morning (6 AM - 12 PM)") },
		w.Next,
		func() error { w.WaitSearches(); return nil },
		func() error { return w.SelectWorker(w.Recommended()[0].Provider.ID) },
		func() error { return w.SetUrgency(models.UrgencyUrgent) },
		w.Next,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if w.Stage() != StageConfirmation {
		t.Fatalf("stage = %v", w.Stage())
	}
}

func TestWizardGating(t *testing.T) {
	w := newTestWizard(t, WizardDeps{})

	var verr *ValidationError
	if err := w.Next(); !errors.As(err, &verr) || verr.Field != "serviceCategory" {
		t.Fatalf("Next without category: %v", err)
	}
	if err := w.SetCategory("gardener"); !errors.As(err, &verr) {
		t.Fatalf("unknown category accepted: %v", err)
	}
	w.SetCategory("plumber")
	if err := w.Next(); err != nil {
		t.Fatal(err)
	}

	// Unresolvable address: location kept, no coordinates, stuck on stage 2.
	var geoErr *GeocodingError
	if err := w.SetLocation(context.Background(), "Nowhere Lane"); !errors.As(err, &geoErr) {
		t.Fatalf("SetLocation = %v, want GeocodingError", err)
	}
	w.SetSchedule("2030-05-14", "Evening (6 PM - 10 PM)")
	if err := w.Next(); !errors.As(err, &verr) || verr.Field != "coordinates" {
		t.Fatalf("Next without coordinates: %v", err)
	}
	if w.Stage() != StageLocationTime {
		t.Fatalf("stage = %v, want location & time", w.Stage())
	}

	if err := w.SetCoordinates("Picked on map", placeA); err != nil {
		t.Fatal(err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("Next with coordinates: %v", err)
	}
	if err := w.Next(); !errors.As(err, &verr) || verr.Field != "selectedWorker" {
		t.Fatalf("Next without worker: %v", err)
	}

	if err := w.Back(); err != nil || w.Stage() != StageLocationTime {
		t.Fatalf("Back: %v, stage %v", err, w.Stage())
	}
	if d := w.Draft(); d.Location != "Picked on map" || d.Date != "2030-05-14" {
		t.Fatalf("Back lost draft fields: %+v", d)
	}
}

func TestWizardRejectsBadSchedule(t *testing.T) {
	w := newTestWizard(t, WizardDeps{})
	var verr *ValidationError
	if err := w.SetSchedule("14/05/2030", "Morning (6 AM - 12 PM)"); !errors.As(err, &verr) || verr.Field != "date" {
		t.Fatalf("bad date: %v", err)
	}
	if err := w.SetSchedule("2030-05-14", " "); !errors.As(err, &verr) || verr.Field != "timeSlot" {
		t.Fatalf("empty slot: %v", err)
	}
	if err := w.SetCoordinates("", models.Coordinates{}); !errors.As(err, &verr) {
		t.Fatalf("zero coordinates accepted: %v", err)
	}
}

func TestWizardRepricesWholesale(t *testing.T) {
	w := newTestWizard(t, WizardDeps{})

	w.SetCategory("plumber")
	w.SetUrgency(models.UrgencyUrgent)
	if d := w.Draft(); d.BasePrice != 300 || d.UrgencyExtra != 150 || d.TotalPrice != 450 {
		t.Fatalf("plumber urgent: %+v", d)
	}

	w.SetCategory("cook")
	w.SetUrgency(models.UrgencyEmergency)
	if d := w.Draft(); d.BasePrice != 400 || d.UrgencyExtra != 400 || d.TotalPrice != 800 {
		t.Fatalf("cook emergency: %+v", d)
	}

	w.SetDuration(models.DurationDaily, 2)
	w.SetUrgency(models.UrgencyNormal)
	if d := w.Draft(); d.BasePrice != 6400 || d.UrgencyExtra != 0 || d.TotalPrice != 6400 {
		t.Fatalf("cook daily x2: %+v", d)
	}
}

func TestWizardSearchLastRequestWins(t *testing.T) {
	gateA := make(chan struct{})
	searcher := &gatedSearcher{
		results: map[models.Coordinates][]models.ProviderCandidate{
			placeA: {candidateNear("from-A", placeA)},
			placeB: {candidateNear("from-B", placeB)},
		},
		gates: map[models.Coordinates]chan struct{}{placeA: gateA},
	}
	w := newTestWizard(t, WizardDeps{Searcher: searcher})
	w.SetCategory("plumber")

	if err := w.SetLocation(context.Background(), "Bandra West"); err != nil {
		t.Fatal(err)
	}
	if !w.Searching() {
		t.Fatal("search for A not in flight")
	}
	if err := w.SetLocation(context.Background(), "Pune"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Searching() {
		if time.Now().After(deadline) {
			t.Fatal("search for B never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(gateA)
	w.WaitSearches()

	got := w.Candidates()
	if len(got) != 1 || got[0].Provider.ID != "from-B" {
		t.Fatalf("candidates = %+v, want B's result", got)
	}
	if searcher.calls != 2 {
		t.Fatalf("searcher called %d times", searcher.calls)
	}
}

func TestWizardSearchFailure(t *testing.T) {
	searcher := &gatedSearcher{err: errors.New("boom")}
	w := newTestWizard(t, WizardDeps{Searcher: searcher})
	w.SetCategory("plumber")
	w.SetCoordinates("Home", placeA)
	w.WaitSearches()

	var serr *SearchError
	if err := w.SearchError(); !errors.As(err, &serr) {
		t.Fatalf("SearchError = %v", err)
	}
	if len(w.Candidates()) != 0 {
		t.Fatal("failed search produced candidates")
	}
}

func TestWizardCloseDiscardsLateResults(t *testing.T) {
	gate := make(chan struct{})
	searcher := &gatedSearcher{
		results: map[models.Coordinates][]models.ProviderCandidate{placeA: {candidateNear("late", placeA)}},
		gates:   map[models.Coordinates]chan struct{}{placeA: gate},
	}
	w := NewWizard(WizardDeps{API: &fakeDoer{}, Searcher: searcher}, Seed{Category: "plumber"})
	w.SetCoordinates("Home", placeA)
	w.Close()

	if len(w.Candidates()) != 0 {
		t.Fatal("results applied after Close")
	}
	if err := w.SetCategory("cook"); !errors.Is(err, ErrWizardClosed) {
		t.Fatalf("SetCategory after Close = %v", err)
	}
}

func TestWizardSubmitFailureKeepsDraft(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"server message", &api.HTTPError{Status: http.StatusBadRequest, Message: "Worker is not available on this date"}, "Worker is not available on this date"},
		{"no message", &api.HTTPError{Status: http.StatusInternalServerError}, GenericSubmitMessage},
		{"network", &api.NetworkError{Err: errors.New("connection reset")}, GenericSubmitMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doer := &fakeDoer{respond: func(req api.Request, out any) error { return tt.err }}
			searcher := &gatedSearcher{results: map[models.Coordinates][]models.ProviderCandidate{placeA: {candidateNear("w1", placeA)}}}
			w := newTestWizard(t, WizardDeps{API: doer, Searcher: searcher})
			walkToConfirmation(t, w)
			before := w.Draft()

			_, err := w.Submit(context.Background())
			var serr *SubmitError
			if !errors.As(err, &serr) || serr.Message != tt.wantMsg {
				t.Fatalf("Submit = %v, want message %q", err, tt.wantMsg)
			}
			if w.Stage() != StageConfirmation {
				t.Fatalf("stage = %v", w.Stage())
			}
			after := w.Draft()
			if after.ID != before.ID || after.SelectedWorker == nil || after.TotalPrice != 450 {
				t.Fatalf("draft changed: %+v", after)
			}
		})
	}
}

func TestWizardSubmitSuccess(t *testing.T) {
	var sent models.BookingRequest
	doer := &fakeDoer{respond: func(req api.Request, out any) error {
		if req.Path == "/bookings/create" {
			sent = req.Body.(models.BookingRequest)
			out.(*models.BookingConfirmation).BookingID = "bk-1"
		}
		return nil
	}}
	searcher := &gatedSearcher{results: map[models.Coordinates][]models.ProviderCandidate{placeA: {candidateNear("w1", placeA)}}}
	reminders := &recordingReminders{}
	now := time.Date(2030, 5, 1, 12, 0, 0, 0, time.Local)
	w := newTestWizard(t, WizardDeps{
		API:       doer,
		Searcher:  searcher,
		Reminders: reminders,
		UserID:    "u1",
		Now:       func() time.Time { return now },
	})
	walkToConfirmation(t, w)
	draftID := w.Draft().ID

	conf, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if conf.BookingID != "bk-1" || w.Stage() != StageDone {
		t.Fatalf("conf = %+v, stage %v", conf, w.Stage())
	}
	if sent.WorkerID != "w1" || sent.TotalPrice != 450 || sent.BasePrice != 300 || sent.UrgencyExtra != 150 {
		t.Fatalf("request = %+v", sent)
	}
	if sent.ServiceType != "Plumbing Services" || sent.Coordinates != placeA {
		t.Fatalf("request = %+v", sent)
	}
	last := doer.requests[len(doer.requests)-1]
	if last.Header.Get("X-Idempotency-Key") != draftID {
		t.Fatalf("idempotency key = %q, want %q", last.Header.Get("X-Idempotency-Key"), draftID)
	}
	if d := w.Draft(); d.ID != "" || d.SelectedWorker != nil {
		t.Fatalf("draft not discarded: %+v", d)
	}
	if _, err := w.Submit(context.Background()); err == nil {
		t.Fatal("second Submit accepted")
	}

	if len(reminders.payloads) != 1 {
		t.Fatalf("reminders = %+v", reminders.payloads)
	}
	p := reminders.payloads[0]
	want := time.Date(2030, 5, 14, 6, 0, 0, 0, time.Local)
	if p.BookingID != "bk-1" || p.UserID != "u1" || !p.FireDate.Equal(want) {
		t.Fatalf("reminder = %+v", p)
	}
}

func TestWizardSubmitOnlyFromConfirmation(t *testing.T) {
	w := newTestWizard(t, WizardDeps{})
	var verr *ValidationError
	if _, err := w.Submit(context.Background()); !errors.As(err, &verr) {
		t.Fatalf("Submit on stage 1 = %v", err)
	}
}

func TestWizardSeedPreselectsProvider(t *testing.T) {
	doer := &fakeDoer{respond: func(req api.Request, out any) error {
		if req.Path == "/providers/p-9" {
			*out.(*models.ProviderCandidate) = models.ProviderCandidate{ID: "p-9", Category: "electrician", Rating: 4.8}
		}
		return nil
	}}
	w := NewWizard(WizardDeps{API: doer, Searcher: &gatedSearcher{}}, Seed{Category: "electrician", ProviderID: "p-9"})
	defer w.Close()
	w.WaitSearches()

	d := w.Draft()
	if d.ServiceCategory != "electrician" || d.BasePrice != 350 {
		t.Fatalf("seed category not applied: %+v", d)
	}
	if d.SelectedWorker == nil || d.SelectedWorker.ID != "p-9" {
		t.Fatalf("provider not preselected: %+v", d.SelectedWorker)
	}
	if w.Stage() != StageServiceDetails {
		t.Fatalf("preselection moved the wizard to %v", w.Stage())
	}
}

func TestWizardNewLocationDropsUnavailableWorker(t *testing.T) {
	searcher := &gatedSearcher{
		results: map[models.Coordinates][]models.ProviderCandidate{
			placeA: {candidateNear("both", placeA), candidateNear("only-A", placeA)},
			placeB: {candidateNear("both", placeB)},
		},
	}
	w := newTestWizard(t, WizardDeps{Searcher: searcher})
	w.SetCategory("plumber")

	w.SetCoordinates("Home", placeA)
	w.WaitSearches()
	if err := w.SelectWorker("only-A"); err != nil {
		t.Fatal(err)
	}
	w.SetCoordinates("Office", placeB)
	w.WaitSearches()
	if sel := w.Draft().SelectedWorker; sel != nil {
		t.Fatalf("worker from the old search kept: %+v", sel)
	}

	if err := w.SelectWorker("both"); err != nil {
		t.Fatal(err)
	}
	w.SetCoordinates("Home", placeA)
	w.WaitSearches()
	if sel := w.Draft().SelectedWorker; sel == nil || sel.ID != "both" {
		t.Fatalf("worker found again was dropped: %+v", sel)
	}
}
