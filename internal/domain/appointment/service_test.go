package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hms/internal/domain/availability"
	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

// 2025-01-06 is a Monday; "today" is the Wednesday before.
const monday = "2025-01-06"

var today = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

type env struct {
	svc      *Service
	repo     *mockRepo
	rules    *mockRules
	tx       *serialTx
	rec      *outcomes
	doctor   uuid.UUID
	hospital uuid.UUID
	rule     *availability.Rule
	admin    *auth.Principal
	owner    *auth.Principal
}

func newEnv(capacity int) *env {
	doctor, hospital := uuid.New(), uuid.New()
	rule := &availability.Rule{
		ID: uuid.New(), DoctorID: doctor, HospitalID: hospital, DayOfWeek: 1,
		StartTime: "09:00", EndTime: "10:00", SlotDuration: 30, MaxPatients: capacity,
		IsActive: true, CreatedAt: today,
	}
	e := &env{
		repo:     newMockRepo(),
		rules:    &mockRules{rules: []*availability.Rule{rule}},
		tx:       &serialTx{},
		rec:      &outcomes{},
		doctor:   doctor,
		hospital: hospital,
		rule:     rule,
		admin:    &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleAdmin},
		owner:    &auth.Principal{UserID: uuid.NewString(), Role: auth.RoleDoctor, DoctorID: doctor.String()},
	}
	dir := &mockDirectory{
		doctors:   map[uuid.UUID]bool{doctor: true},
		hospitals: map[uuid.UUID]bool{hospital: true},
	}
	e.svc = NewService(e.repo, e.rules, dir, e.tx, StatusPending, time.UTC, e.rec)
	e.svc.now = func() time.Time { return today }
	return e
}

func patient() *auth.Principal {
	return &auth.Principal{UserID: uuid.NewString(), Role: auth.RolePatient}
}

func (e *env) request(slot string) BookRequest {
	return BookRequest{
		DoctorID:        e.doctor.String(),
		HospitalID:      e.hospital.String(),
		AppointmentDate: monday,
		AppointmentTime: slot,
	}
}

func (e *env) book(t *testing.T, p *auth.Principal, slot string) *Appointment {
	t.Helper()
	a, err := e.svc.Book(context.Background(), p, e.request(slot))
	require.NoError(t, err)
	return a
}

func TestBook_PatientBooksForSelf(t *testing.T) {
	e := newEnv(2)
	p := patient()

	a := e.book(t, p, "9:30")
	assert.Equal(t, p.UserID, a.PatientID.String())
	assert.Equal(t, "09:30", a.AppointmentTime)
	assert.Equal(t, StatusPending, a.Status)
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, 1, e.tx.calls)
	assert.Equal(t, []error{nil}, e.rec.errs)
}

func TestBook_DefaultStatusConfirmed(t *testing.T) {
	e := newEnv(1)
	e.svc.defaultStatus = StatusConfirmed

	a := e.book(t, patient(), "09:00")
	assert.Equal(t, StatusConfirmed, a.Status)
}

func TestBook_InvalidSlot(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()

	// not on the 30 minute grid, and past the last full slot
	for _, slot := range []string{"09:10", "10:00", "08:30"} {
		_, err := e.svc.Book(ctx, patient(), e.request(slot))
		var is *apperr.InvalidSlotError
		assert.ErrorAs(t, err, &is, slot)
	}

	// Tuesday has no rules
	req := e.request("09:00")
	req.AppointmentDate = "2025-01-07"
	_, err := e.svc.Book(ctx, patient(), req)
	var is *apperr.InvalidSlotError
	assert.ErrorAs(t, err, &is)

	e.rule.IsActive = false
	_, err = e.svc.Book(ctx, patient(), e.request("09:00"))
	assert.ErrorAs(t, err, &is)
	assert.Empty(t, e.repo.store)
}

func TestBook_SlotFull(t *testing.T) {
	e := newEnv(2)
	e.book(t, patient(), "09:00")
	e.book(t, patient(), "09:00")

	_, err := e.svc.Book(context.Background(), patient(), e.request("09:00"))
	var sf *apperr.SlotFullError
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, 2, sf.Capacity)
	assert.Len(t, e.repo.store, 2)

	// the other slot of the rule is unaffected
	e.book(t, patient(), "09:30")
}

func TestBook_CancelledDoesNotCount(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()
	first := e.book(t, patient(), "09:00")
	e.book(t, patient(), "09:00")

	_, err := e.svc.ChangeStatus(ctx, e.owner, first.ID, StatusCancelled)
	require.NoError(t, err)

	e.book(t, patient(), "09:00")
}

func TestBook_Duplicate(t *testing.T) {
	e := newEnv(5)
	p := patient()
	e.book(t, p, "09:00")

	_, err := e.svc.Book(context.Background(), p, e.request("09:00"))
	var dup *apperr.DuplicateBookingError
	assert.ErrorAs(t, err, &dup)
}

func TestBook_Validation(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()

	cases := map[string]func(r *BookRequest){
		"doctor_id":        func(r *BookRequest) { r.DoctorID = "x" },
		"hospital_id":      func(r *BookRequest) { r.HospitalID = "" },
		"appointment_date": func(r *BookRequest) { r.AppointmentDate = "2024-12-31" },
		"appointment_time": func(r *BookRequest) { r.AppointmentTime = "25:00" },
		"notes":            func(r *BookRequest) { r.Notes = string(make([]byte, MaxNotesLength+1)) },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := e.request("09:00")
			mutate(&req)
			_, err := e.svc.Book(ctx, patient(), req)
			assert.Equal(t, field, apperr.Field(err))
		})
	}

	// today itself is bookable
	e.rules.rules[0].DayOfWeek = 3
	req := e.request("09:00")
	req.AppointmentDate = "2025-01-01"
	_, err := e.svc.Book(ctx, patient(), req)
	assert.NoError(t, err)
}

func TestBook_Callers(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()
	someone := uuid.NewString()

	_, err := e.svc.Book(ctx, e.admin, e.request("09:00"))
	assert.Equal(t, "patient_id", apperr.Field(err))

	req := e.request("09:00")
	req.PatientID = someone
	a, err := e.svc.Book(ctx, e.admin, req)
	require.NoError(t, err)
	assert.Equal(t, someone, a.PatientID.String())

	_, err = e.svc.Book(ctx, e.owner, req)
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, err = e.svc.Book(ctx, patient(), req)
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, err = e.svc.Book(ctx, nil, req)
	assert.Equal(t, 401, apperr.HTTPStatus(err))
}

func TestBook_UnknownDoctorOrHospital(t *testing.T) {
	e := newEnv(2)

	req := e.request("09:00")
	req.DoctorID = uuid.NewString()
	_, err := e.svc.Book(context.Background(), patient(), req)
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "doctor", nf.Resource)
	assert.Zero(t, e.tx.calls)
}

func TestBook_ConcurrentNeverExceedsCapacity(t *testing.T) {
	const capacity, callers = 3, 20
	e := newEnv(capacity)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.Book(context.Background(), patient(), e.request("09:30"))
		}(i)
	}
	wg.Wait()

	booked, full := 0, 0
	for _, err := range errs {
		var sf *apperr.SlotFullError
		switch {
		case err == nil:
			booked++
		case assert.ErrorAs(t, err, &sf):
			full++
		}
	}
	assert.Equal(t, capacity, booked)
	assert.Equal(t, callers-capacity, full)
	assert.Len(t, e.rec.errs, callers)
}

func TestChangeStatus(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()
	a := e.book(t, patient(), "09:00")

	got, err := e.svc.ChangeStatus(ctx, e.owner, a.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	_, err = e.svc.ChangeStatus(ctx, e.admin, a.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, e.repo.store[a.ID].Status)

	_, err = e.svc.ChangeStatus(ctx, e.admin, a.ID, StatusCancelled)
	assert.Equal(t, "status", apperr.Field(err))
}

func TestChangeStatus_Errors(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()
	p := patient()
	a := e.book(t, p, "09:00")

	_, err := e.svc.ChangeStatus(ctx, e.owner, a.ID, "archived")
	assert.Equal(t, "status", apperr.Field(err))

	_, err = e.svc.ChangeStatus(ctx, e.owner, uuid.New(), StatusConfirmed)
	assert.Equal(t, 404, apperr.HTTPStatus(err))

	stranger := &auth.Principal{Role: auth.RoleDoctor, DoctorID: uuid.NewString()}
	_, err = e.svc.ChangeStatus(ctx, stranger, a.ID, StatusConfirmed)
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, err = e.svc.ChangeStatus(ctx, p, a.ID, StatusConfirmed)
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, err = e.svc.ChangeStatus(ctx, patient(), a.ID, StatusCancelled)
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, err = e.svc.ChangeStatus(ctx, e.owner, a.ID, StatusCompleted)
	assert.Equal(t, "status", apperr.Field(err), "pending cannot jump to completed")
}

func TestChangeStatus_PatientCancelsOwn(t *testing.T) {
	e := newEnv(2)
	p := patient()
	a := e.book(t, p, "09:00")

	got, err := e.svc.ChangeStatus(context.Background(), p, a.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestGet(t *testing.T) {
	e := newEnv(2)
	ctx := context.Background()
	p := patient()
	a := e.book(t, p, "09:00")

	for _, viewer := range []*auth.Principal{p, e.owner, e.admin} {
		got, err := e.svc.Get(ctx, viewer, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
	}

	stranger := &auth.Principal{Role: auth.RoleDoctor, DoctorID: uuid.NewString()}
	for _, viewer := range []*auth.Principal{patient(), stranger} {
		_, err := e.svc.Get(ctx, viewer, a.ID)
		assert.Equal(t, 403, apperr.HTTPStatus(err))
	}
}

func TestList_RoleDefaults(t *testing.T) {
	e := newEnv(5)
	ctx := context.Background()
	p := patient()
	e.book(t, p, "09:00")
	e.book(t, p, "09:30")
	e.book(t, patient(), "09:00")

	items, total, err := e.svc.List(ctx, p, ListFilter{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = e.svc.List(ctx, e.owner, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)

	_, _, err = e.svc.List(ctx, e.admin, ListFilter{Limit: 20})
	assert.Equal(t, "patient_id", apperr.Field(err))

	_, total, err = e.svc.List(ctx, e.admin, ListFilter{DoctorID: &e.doctor, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestList_Forbidden(t *testing.T) {
	e := newEnv(5)
	ctx := context.Background()
	other := uuid.New()

	_, _, err := e.svc.List(ctx, patient(), ListFilter{PatientID: &other, Limit: 20})
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, _, err = e.svc.List(ctx, patient(), ListFilter{DoctorID: &e.doctor, Limit: 20})
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, _, err = e.svc.List(ctx, e.owner, ListFilter{DoctorID: &other, Limit: 20})
	assert.Equal(t, 403, apperr.HTTPStatus(err))

	_, _, err = e.svc.List(ctx, e.owner, ListFilter{PatientID: &other, Limit: 20})
	assert.Equal(t, 403, apperr.HTTPStatus(err))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusConfirmed, StatusCompleted))
	assert.True(t, CanTransition(StatusConfirmed, StatusCancelled))

	assert.False(t, CanTransition(StatusPending, StatusCompleted))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition(StatusConfirmed, StatusConfirmed))
}
