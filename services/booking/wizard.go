package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"flexify/models"
	"flexify/services/api"
	"flexify/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is a wizard step.
type Stage int

const (
	StageServiceDetails Stage = iota + 1
	StageLocationTime
	StagePricingOptions
	StageConfirmation
	// StageDone follows a successful submission.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageServiceDetails:
		return "Service Details"
	case StageLocationTime:
		return "Location & Time"
	case StagePricingOptions:
		return "Pricing & Options"
	case StageConfirmation:
		return "Confirm Booking"
	case StageDone:
		return "Done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// DateLayout is the wire format of booking dates.
const DateLayout = "2006-01-02"

// Filters narrow the nearby search.
type Filters struct {
	MaxDistanceKm float64
	VerifiedOnly  bool
}

// WizardDeps are the collaborators of a Wizard. Geocoder and Reminders are
// optional.
type WizardDeps struct {
	API       api.Doer
	Searcher  Searcher
	Geocoder  Geocoder
	Reminders ReminderScheduler
	Matcher   *Matcher
	Logger    *zap.Logger
	Filters   Filters
	// UserID addresses reminders.
	UserID string
	Now    func() time.Time
}

// Seed preloads the wizard, as when arriving from a category or provider page.
type Seed struct {
	Category   string
	ProviderID string
}

// Wizard drives the four booking stages over one draft. All methods are
// safe for concurrent use. Provider searches run in the background; only the
// most recently started one may update the candidate list.
type Wizard struct {
	api       api.Doer
	searcher  Searcher
	geocoder  Geocoder
	reminders ReminderScheduler
	matcher   *Matcher
	logger    *zap.Logger
	filters   Filters
	userID    string
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	stage        Stage
	draft        models.BookingDraft
	candidates   []models.RankedProvider
	searchGen    uint64
	searching    bool
	searched     bool
	searchErr    error
	locationGen  uint64
	submitting   bool
	closed       bool
	confirmation *models.BookingConfirmation
}

func NewWizard(deps WizardDeps, seed Seed) *Wizard {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Wizard{
		api:       deps.API,
		searcher:  deps.Searcher,
		geocoder:  deps.Geocoder,
		reminders: deps.Reminders,
		matcher:   deps.Matcher,
		logger:    utils.OrNop(deps.Logger),
		filters:   deps.Filters,
		userID:    deps.UserID,
		now:       deps.Now,
		ctx:       ctx,
		cancel:    cancel,
		stage:     StageServiceDetails,
		draft:     newDraft(),
	}
	if w.matcher == nil {
		w.matcher = NewMatcher(deps.Logger)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.filters.MaxDistanceKm <= 0 {
		w.filters.MaxDistanceKm = 10
	}

	if seed.Category != "" {
		if err := w.SetCategory(seed.Category); err != nil {
			w.logger.Warn("Ignoring unknown seed category", zap.String("category", seed.Category))
		}
	}
	if seed.ProviderID != "" {
		w.preselect(seed.ProviderID)
	}
	return w
}

func newDraft() models.BookingDraft {
	return models.BookingDraft{
		ID:            uuid.New().String(),
		Duration:      models.DurationHourly,
		DurationValue: 1,
		Urgency:       models.UrgencyNormal,
	}
}

// preselect fetches a provider in the background and selects it once found.
func (w *Wizard) preselect(providerID string) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		var p models.ProviderCandidate
		err := w.api.Send(w.ctx, api.Request{Method: http.MethodGet, Path: "/providers/" + providerID}, &p)
		if err != nil {
			w.logger.Warn("Failed to load preselected provider", zap.String("providerID", providerID), zap.Error(err))
			return
		}
		if p.ID == "" {
			p.ID = providerID
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.stage == StageDone || w.draft.SelectedWorker != nil {
			return
		}
		if w.searched && !w.hasCandidate(p.ID) {
			w.logger.Info("Preselected provider not available at this location", zap.String("providerID", p.ID))
			return
		}
		w.draft.SelectedWorker = &p
		w.logger.Debug("Provider preselected", zap.String("providerID", p.ID))
	}()
}

// editable reports whether the draft may change. Callers hold w.mu.
func (w *Wizard) editable() error {
	if w.closed {
		return ErrWizardClosed
	}
	if w.stage == StageDone {
		return errors.New("booking already submitted")
	}
	return nil
}

// reprice rewrites the pricing fields from scratch. Callers hold w.mu.
func (w *Wizard) reprice() {
	p, ok := Quote(w.draft.ServiceCategory, w.draft.Duration, w.draft.DurationValue, w.draft.Urgency)
	if !ok {
		w.draft.BasePrice, w.draft.UrgencyExtra, w.draft.TotalPrice = 0, 0, 0
		return
	}
	w.draft.BasePrice = p.Base
	w.draft.UrgencyExtra = p.UrgencyExtra
	w.draft.TotalPrice = p.Total
}

// SetCategory selects the service category. A changed category reprices the
// draft and restarts the provider search.
func (w *Wizard) SetCategory(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if _, ok := LookupCategory(key); !ok {
		return &ValidationError{Stage: StageServiceDetails, Field: "serviceCategory", Message: "Please select a valid service category"}
	}
	if w.draft.ServiceCategory == key {
		return nil
	}
	w.draft.ServiceCategory = key
	if sel := w.draft.SelectedWorker; sel != nil && sel.Category != "" && sel.Category != key {
		w.draft.SelectedWorker = nil
	}
	w.reprice()
	w.startSearch()
	return nil
}

func (w *Wizard) SetServiceType(serviceType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.ServiceType = strings.TrimSpace(serviceType)
	return nil
}

// SetDuration sets the engagement length, value units of d.
func (w *Wizard) SetDuration(d models.Duration, value int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if _, ok := durationMultipliers[d]; !ok {
		return &ValidationError{Stage: StageServiceDetails, Field: "duration", Message: "Please select a valid duration"}
	}
	if value < 1 {
		return &ValidationError{Stage: StageServiceDetails, Field: "durationValue", Message: "Duration must be at least 1"}
	}
	w.draft.Duration = d
	w.draft.DurationValue = value
	w.reprice()
	return nil
}

func (w *Wizard) SetUrgency(u models.Urgency) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if _, ok := urgencyMultipliers[u]; !ok {
		return &ValidationError{Stage: StagePricingOptions, Field: "urgency", Message: "Please select a valid urgency level"}
	}
	w.draft.Urgency = u
	w.reprice()
	return nil
}

func (w *Wizard) SetSpecialRequirements(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.SpecialRequirements = strings.TrimSpace(text)
	return nil
}

func (w *Wizard) SetSkillTags(tags []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.SkillTags = append([]string(nil), tags...)
	return nil
}

// SetLocation geocodes address and, on success, stores it with its
// coordinates. On failure the address is kept, the coordinates are cleared
// and a GeocodingError is returned.
func (w *Wizard) SetLocation(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	w.mu.Lock()
	if err := w.editable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if address == "" {
		w.mu.Unlock()
		return &ValidationError{Stage: StageLocationTime, Field: "location", Message: "Please enter a service location"}
	}
	w.locationGen++
	gen := w.locationGen
	geocoder := w.geocoder
	w.mu.Unlock()

	var coords models.Coordinates
	var err error
	if geocoder == nil {
		err = errors.New("no geocoder configured")
	} else {
		coords, _, err = geocoder.Geocode(ctx, address)
		if err == nil && !coords.Valid() {
			err = fmt.Errorf("geocoder returned unusable coordinates %v", coords)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.locationGen || w.editable() != nil {
		return nil
	}
	w.draft.Location = address
	if err != nil {
		w.logger.Info("Address could not be resolved", zap.String("address", address), zap.Error(err))
		w.draft.Coordinates = nil
		w.invalidateSearch()
		return &GeocodingError{Address: address, Err: err}
	}
	w.draft.Coordinates = &coords
	w.startSearch()
	return nil
}

// SetCoordinates sets the location from a picked point.
func (w *Wizard) SetCoordinates(label string, c models.Coordinates) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if !c.Valid() {
		return &ValidationError{Stage: StageLocationTime, Field: "coordinates", Message: "Please pick a valid location"}
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lng)
	}
	w.locationGen++
	w.draft.Location = label
	w.draft.Coordinates = &c
	w.startSearch()
	return nil
}

// SetSchedule sets the booking date (YYYY-MM-DD) and time slot.
func (w *Wizard) SetSchedule(date, timeSlot string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &ValidationError{Stage: StageLocationTime, Field: "date", Message: "Please select a valid date"}
	}
	if strings.TrimSpace(timeSlot) == "" {
		return &ValidationError{Stage: StageLocationTime, Field: "timeSlot", Message: "Please select a time slot"}
	}
	w.draft.Date = date
	w.draft.TimeSlot = timeSlot
	return nil
}

// invalidateSearch discards any in-flight search and the candidate list.
// Callers hold w.mu.
func (w *Wizard) invalidateSearch() {
	w.searchGen++
	w.searching = false
	w.searched = false
	w.candidates = nil
	w.searchErr = nil
}

// hasCandidate reports whether id is in the latest search result. Callers
// hold w.mu.
func (w *Wizard) hasCandidate(id string) bool {
	for _, c := range w.candidates {
		if c.Provider.ID == id {
			return true
		}
	}
	return false
}

// startSearch starts a provider search for the current category and
// location if both are set. Callers hold w.mu.
func (w *Wizard) startSearch() {
	if w.draft.ServiceCategory == "" || w.draft.Coordinates == nil || w.searcher == nil {
		return
	}
	w.invalidateSearch()
	gen := w.searchGen
	origin := *w.draft.Coordinates
	q := SearchQuery{
		Category:      w.draft.ServiceCategory,
		Origin:        origin,
		MaxDistanceKm: w.filters.MaxDistanceKm,
		VerifiedOnly:  w.filters.VerifiedOnly,
	}
	w.searching = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		found, err := w.searcher.Search(w.ctx, q)
		var ranked []models.RankedProvider
		if err == nil {
			ranked, err = w.matcher.Rank(origin, found)
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || gen != w.searchGen {
			w.logger.Debug("Discarding stale provider search", zap.String("category", q.Category))
			return
		}
		w.searching = false
		if err != nil {
			w.logger.Error("Error finding workers", zap.String("category", q.Category), zap.Error(err))
			w.searchErr = &SearchError{Err: err}
			return
		}
		w.candidates = ranked
		w.searched = true
		if sel := w.draft.SelectedWorker; sel != nil && !w.hasCandidate(sel.ID) {
			w.logger.Info("Selected worker not available at this location", zap.String("providerID", sel.ID))
			w.draft.SelectedWorker = nil
		}
		w.logger.Debug("Provider search finished", zap.String("category", q.Category), zap.Int("candidates", len(ranked)))
	}()
}

// Next advances one stage if the current stage is complete.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if err := w.checkStage(); err != nil {
		return err
	}
	if w.stage == StageConfirmation {
		return &ValidationError{Stage: StageConfirmation, Message: "Submit the booking to continue"}
	}
	w.stage++
	return nil
}

// checkStage validates the fields the current stage requires. The
// confirmation stage re-checks every earlier stage. Callers hold w.mu.
func (w *Wizard) checkStage() error {
	if w.stage != StageConfirmation {
		return checkStageFields(w.stage, w.draft)
	}
	for s := StageServiceDetails; s < StageConfirmation; s++ {
		if err := checkStageFields(s, w.draft); err != nil {
			return err
		}
	}
	return nil
}

func checkStageFields(stage Stage, d models.BookingDraft) error {
	switch stage {
	case StageServiceDetails:
		if d.ServiceCategory == "" {
			return &ValidationError{Stage: stage, Field: "serviceCategory", Message: "Please select a service category"}
		}
	case StageLocationTime:
		if d.Location == "" {
			return &ValidationError{Stage: stage, Field: "location", Message: "Please enter a service location"}
		}
		if d.Coordinates == nil || !d.Coordinates.Valid() {
			return &ValidationError{Stage: stage, Field: "coordinates", Message: "We could not find that location. Please pick it on the map"}
		}
		if d.Date == "" {
			return &ValidationError{Stage: stage, Field: "date", Message: "Please select a date"}
		}
		if d.TimeSlot == "" {
			return &ValidationError{Stage: stage, Field: "timeSlot", Message: "Please select a time slot"}
		}
	case StagePricingOptions:
		if d.SelectedWorker == nil {
			return &ValidationError{Stage: stage, Field: "selectedWorker", Message: "Please select a worker"}
		}
	}
	return nil
}

// Back returns to the previous stage, keeping the draft.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	if w.stage > StageServiceDetails {
		w.stage--
	}
	return nil
}

func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Draft returns a copy of the draft.
func (w *Wizard) Draft() models.BookingDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.draft
	d.SkillTags = append([]string(nil), w.draft.SkillTags...)
	if w.draft.Coordinates != nil {
		c := *w.draft.Coordinates
		d.Coordinates = &c
	}
	if w.draft.SelectedWorker != nil {
		p := *w.draft.SelectedWorker
		d.SelectedWorker = &p
	}
	return d
}

// Candidates returns the full ranked list of the latest search.
func (w *Wizard) Candidates() []models.RankedProvider {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.RankedProvider(nil), w.candidates...)
}

// Recommended returns the top candidates of the latest search.
func (w *Wizard) Recommended() []models.RankedProvider {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Recommended(w.candidates)
}

// Searching reports whether a provider search is in flight.
func (w *Wizard) Searching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.searching
}

// SearchError returns the error of the latest search, if it failed.
func (w *Wizard) SearchError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.searchErr
}

// SelectWorker picks a candidate of the latest search by provider id.
func (w *Wizard) SelectWorker(providerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	for _, c := range w.candidates {
		if c.Provider.ID == providerID {
			p := c.Provider
			w.draft.SelectedWorker = &p
			return nil
		}
	}
	return &ValidationError{Stage: StagePricingOptions, Field: "selectedWorker", Message: "Selected worker is not available"}
}

// WaitSearches blocks until background searches have finished.
func (w *Wizard) WaitSearches() {
	w.wg.Wait()
}

// Confirmation returns the server response of a successful submission.
func (w *Wizard) Confirmation() *models.BookingConfirmation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirmation
}

// Submit creates the booking. On success the wizard moves to StageDone and
// the draft is discarded. On failure it stays on the confirmation stage with
// the draft intact and returns a SubmitError; resubmitting reuses the draft
// id as idempotency key.
func (w *Wizard) Submit(ctx context.Context) (*models.BookingConfirmation, error) {
	w.mu.Lock()
	if err := w.editable(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.stage != StageConfirmation {
		w.mu.Unlock()
		return nil, &ValidationError{Stage: w.stage, Message: "Complete all steps before submitting"}
	}
	if err := w.checkStage(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	w.submitting = true
	draft := w.draft
	req := buildRequest(draft)
	w.mu.Unlock()

	var conf models.BookingConfirmation
	err := w.api.Send(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/bookings/create",
		Body:   req,
		Header: http.Header{"X-Idempotency-Key": {draft.ID}},
	}, &conf)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		w.mu.Unlock()
		msg := api.MessageOf(err)
		if msg == "" {
			msg = GenericSubmitMessage
		}
		w.logger.Error("Error creating booking", zap.String("draftID", draft.ID), zap.Error(err))
		return nil, &SubmitError{Message: msg, Err: err}
	}
	w.stage = StageDone
	w.draft = models.BookingDraft{}
	w.invalidateSearch()
	w.confirmation = &conf
	w.mu.Unlock()
	w.cancel()

	w.logger.Info("Booking created", zap.String("bookingID", conf.BookingID), zap.String("category", draft.ServiceCategory))
	w.scheduleReminder(ctx, draft, conf)
	return &conf, nil
}

func buildRequest(d models.BookingDraft) models.BookingRequest {
	serviceType := d.ServiceType
	if serviceType == "" {
		if cat, ok := LookupCategory(d.ServiceCategory); ok {
			serviceType = cat.Name
		} else {
			serviceType = d.ServiceCategory
		}
	}
	return models.BookingRequest{
		WorkerID:            d.SelectedWorker.ID,
		ServiceType:         serviceType,
		ServiceCategory:     d.ServiceCategory,
		Duration:            d.Duration,
		DurationValue:       d.DurationValue,
		Location:            d.Location,
		Coordinates:         *d.Coordinates,
		TimeSlot:            d.TimeSlot,
		Date:                d.Date,
		Urgency:             d.Urgency,
		SkillTags:           d.SkillTags,
		SpecialRequirements: d.SpecialRequirements,
		TotalPrice:          d.TotalPrice,
		BasePrice:           d.BasePrice,
		UrgencyExtra:        d.UrgencyExtra,
	}
}

// ReminderTime is when a reminder for the booking should fire: the start
// of its time slot on its date, in local time. Unknown slots start at 9 AM.
func ReminderTime(date, timeSlot string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	hour := 9
	if slot, ok := LookupTimeSlot(timeSlot); ok {
		hour = slot.StartHour
	}
	return day.Add(time.Duration(hour) * time.Hour), nil
}

func (w *Wizard) scheduleReminder(ctx context.Context, d models.BookingDraft, conf models.BookingConfirmation) {
	if w.reminders == nil || conf.BookingID == "" {
		return
	}
	fireAt, err := ReminderTime(d.Date, d.TimeSlot)
	if err != nil || !fireAt.After(w.now()) {
		return
	}
	name := d.ServiceCategory
	if cat, ok := LookupCategory(d.ServiceCategory); ok {
		name = cat.Name
	}
	payload := models.ReminderPayload{
		BookingID: conf.BookingID,
		UserID:    w.userID,
		Title:     "Upcoming booking",
		Body:      fmt.Sprintf("%s on %s, %s at %s", name, d.Date, d.TimeSlot, d.Location),
		FireDate:  fireAt,
	}
	if err := w.reminders.ScheduleReminder(context.WithoutCancel(ctx), payload); err != nil {
		w.logger.Warn("Failed to schedule booking reminder", zap.String("bookingID", conf.BookingID), zap.Error(err))
	}
}

// Close cancels background work and waits for it to stop. Results that
// arrive later are discarded.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	w.searchGen++
	w.mu.Unlock()
	w.cancel()
	w.wg.Wait()
}
