package reconciler

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/osissync/internal/catalog"
	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/dbtest"
	"github.com/dmitrijs2005/osissync/internal/envelope"
	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/repositories/records"
	"github.com/dmitrijs2005/osissync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/dmitrijs2005/osissync/internal/timex"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db  *sql.DB
	reg *schema.Registry
	rm  repomanager.RepositoryManager
	r   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := catalog.NewRegistry()
	db := dbtest.OpenSQLite(t)
	rm := repomanager.NewSQLiteRepositoryManager(reg)
	return &fixture{
		db:  db,
		reg: reg,
		rm:  rm,
		r:   New(db, rm, reg, logging.NewDiscardLogger()),
	}
}

func (f *fixture) repo() records.Repository {
	return f.rm.Records(f.db)
}

func (f *fixture) model(t *testing.T, name string) *schema.Model {
	t.Helper()
	m, ok := f.reg.Lookup(name)
	require.True(t, ok)
	return m
}

func epoch(t time.Time) *float64 {
	v := timex.ToEpoch(t)
	return &v
}

func personBody(id uuid.UUID, lastName string) *codec.SerializedRecord {
	return &codec.SerializedRecord{
		Model: catalog.Person,
		Fields: map[string]any{
			"uuid":      id.String(),
			"last_name": lastName,
		},
	}
}

func TestPersist_RoundTrip(t *testing.T) {
	ctx := context.Background()
	origin := newFixture(t)
	portal := newFixture(t)

	changed := time.Date(2024, 9, 14, 8, 0, 30, 0, time.UTC)
	src := models.New(origin.model(t, catalog.Person)).
		Set("global_id", "00012345").
		Set("first_name", "Grace").
		Set("last_name", "Hopper").
		Set("birth_date", time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC)).
		Set("employee", false).
		Set("changed", changed)
	_, err := origin.repo().Insert(ctx, src)
	require.NoError(t, err)

	sr, err := codec.New(origin.reg).Serialize(src, nil)
	require.NoError(t, err)
	payload, err := envelope.Upsert(sr).Encode()
	require.NoError(t, err)

	require.NoError(t, portal.r.HandleMessage(ctx, payload))

	got, err := portal.repo().FindByUUID(ctx, src.Model, src.UUID)
	require.NoError(t, err)
	assert.Equal(t, "00012345", got.Get("global_id"))
	assert.Equal(t, "Grace", got.Get("first_name"))
	assert.Equal(t, "Hopper", got.Get("last_name"))
	assert.Equal(t, false, got.Get("employee"))
	assert.Nil(t, got.Get("email"))

	bd, ok := got.Get("birth_date").(time.Time)
	require.True(t, ok)
	assert.Equal(t, "1906-12-09", bd.Format(time.DateOnly))

	c, ok := got.Changed()
	require.True(t, ok)
	assert.WithinDuration(t, changed, c, time.Second)
}

func TestPersist_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := uuid.New()

	env := envelope.Upsert(personBody(id, "Turing"))
	first, err := f.r.Apply(ctx, env)
	require.NoError(t, err)
	second, err := f.r.Apply(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	all, err := f.repo().ListAll(ctx, f.model(t, catalog.Person))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Turing", all[0].Get("last_name"))
}

func TestPersist_SkipsStaleUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	local := models.New(f.model(t, catalog.Person)).Set("last_name", "Local").Set("changed", t2)
	localID, err := f.repo().Insert(ctx, local)
	require.NoError(t, err)

	body := personBody(local.UUID, "Remote")
	body.LastSync = epoch(t1)

	id, err := f.r.Persist(ctx, f.repo(), body)
	require.NoError(t, err)
	assert.Equal(t, localID, id)

	got, err := f.repo().FindByUUID(ctx, local.Model, local.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Local", got.Get("last_name"))
}

func TestPersist_AppliesWhenNotStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	changed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		lastSync *float64
		changed  any
	}{
		{name: "equal stamps", lastSync: epoch(changed), changed: changed},
		{name: "newer last_sync", lastSync: epoch(changed.Add(time.Minute)), changed: changed},
		{name: "no last_sync", lastSync: nil, changed: changed},
		{name: "no local changed", lastSync: epoch(changed.Add(-time.Hour)), changed: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := models.New(f.model(t, catalog.Person)).Set("last_name", "Local").Set("changed", tc.changed)
			_, err := f.repo().Insert(ctx, local)
			require.NoError(t, err)

			body := personBody(local.UUID, "Remote")
			body.LastSync = tc.lastSync
			id, err := f.r.Persist(ctx, f.repo(), body)
			require.NoError(t, err)
			assert.Equal(t, local.ID, id)

			got, err := f.repo().FindByUUID(ctx, local.Model, local.UUID)
			require.NoError(t, err)
			assert.Equal(t, "Remote", got.Get("last_name"))
		})
	}
}

func TestUnwrap_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rec := models.New(f.model(t, catalog.AcademicYear)).Set("year", int64(2020))
	_, err := f.repo().Insert(ctx, rec)
	require.NoError(t, err)

	body := &codec.SerializedRecord{Model: catalog.AcademicYear, Fields: map[string]any{"uuid": rec.UUID.String()}}
	payload, err := envelope.Delete(body).Encode()
	require.NoError(t, err)

	require.NoError(t, f.r.HandleMessage(ctx, payload))
	require.NoError(t, f.r.HandleMessage(ctx, payload))

	_, err = f.repo().FindByUUID(ctx, rec.Model, rec.UUID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUnwrap_UpsertReturnsBody(t *testing.T) {
	f := newFixture(t)
	body := personBody(uuid.New(), "x")

	got, err := f.r.Unwrap(context.Background(), f.repo(), envelope.Upsert(body))
	require.NoError(t, err)
	assert.Same(t, body, got)
}

func TestPersist_PreservesOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.ExecContext(ctx, `INSERT INTO auth_user (id, username) VALUES (3, 'ghopper')`)
	require.NoError(t, err)

	owner := int64(3)
	local := models.New(f.model(t, catalog.Person)).Set("last_name", "Hopper")
	local.Owner = &owner
	_, err = f.repo().Insert(ctx, local)
	require.NoError(t, err)

	body := personBody(local.UUID, "Hopper-Murray")
	// Whatever the sender says about the owner is not applied.
	body.Fields["user"] = nil
	_, err = f.r.Apply(ctx, envelope.Upsert(body))
	require.NoError(t, err)

	got, err := f.repo().FindByUUID(ctx, local.Model, local.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Hopper-Murray", got.Get("last_name"))
	require.NotNil(t, got.Owner)
	assert.Equal(t, int64(3), *got.Owner)
}

func TestPersist_RelationsFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	personID := uuid.New()
	studentID := uuid.New()
	body := &codec.SerializedRecord{
		Model: catalog.Student,
		Fields: map[string]any{
			"uuid":            studentID.String(),
			"registration_id": "REG-77",
			"person":          personBody(personID, "Noether"),
		},
	}

	id, err := f.r.Apply(ctx, envelope.Upsert(body))
	require.NoError(t, err)
	require.NotZero(t, id)

	person, err := f.repo().FindByUUID(ctx, f.model(t, catalog.Person), personID)
	require.NoError(t, err)
	assert.Equal(t, "Noether", person.Get("last_name"))

	student, err := f.repo().GetByID(ctx, f.model(t, catalog.Student), id)
	require.NoError(t, err)
	assert.Equal(t, studentID, student.UUID)
	assert.Equal(t, person.ID, student.Get("person"))
}

func TestPersist_NullRelation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	body := &codec.SerializedRecord{
		Model:  catalog.Student,
		Fields: map[string]any{"uuid": uuid.NewString(), "person": nil},
	}
	id, err := f.r.Persist(ctx, f.repo(), body)
	require.NoError(t, err)

	student, err := f.repo().GetByID(ctx, f.model(t, catalog.Student), id)
	require.NoError(t, err)
	assert.Nil(t, student.Get("person"))
}

func TestPersist_IgnoresUnknownFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	body := personBody(uuid.New(), "Liskov")
	body.Fields["shoe_size"] = json.Number("42")
	body.Fields["id"] = json.Number("999")

	id, err := f.r.Persist(ctx, f.repo(), body)
	require.NoError(t, err)
	assert.NotEqual(t, int64(999), id)
}

func TestPersist_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.r.Persist(ctx, f.repo(), nil)
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = f.r.Persist(ctx, f.repo(), &codec.SerializedRecord{Model: "base.unknown", Fields: map[string]any{"uuid": uuid.NewString()}})
	require.ErrorIs(t, err, common.ErrUnknownModel)

	_, err = f.r.Persist(ctx, f.repo(), &codec.SerializedRecord{Model: catalog.Person, Fields: map[string]any{}})
	require.ErrorIs(t, err, common.ErrMissingUUID)

	_, err = f.r.Persist(ctx, f.repo(), &codec.SerializedRecord{Model: catalog.Person, Fields: map[string]any{"uuid": "not-a-uuid"}})
	require.ErrorIs(t, err, common.ErrMissingUUID)
}

func TestApply_RollsBackNestedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	yearID := uuid.New()
	body := &codec.SerializedRecord{
		Model: catalog.LearningUnitYear,
		Fields: map[string]any{
			"uuid":    uuid.NewString(),
			"credits": "plenty",
			"academic_year": &codec.SerializedRecord{
				Model:  catalog.AcademicYear,
				Fields: map[string]any{"uuid": yearID.String(), "year": json.Number("2024")},
			},
		},
	}

	_, err := f.r.Apply(ctx, envelope.Upsert(body))
	require.ErrorIs(t, err, common.ErrInvalidField)

	_, err = f.repo().FindByUUID(ctx, f.model(t, catalog.AcademicYear), yearID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHandleMessage_Legacy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	personID := uuid.New()
	studentID := uuid.New()
	objects := []map[string]any{{
		"model": catalog.Student,
		"fields": map[string]any{
			"uuid":            studentID.String(),
			"registration_id": "LEG-1",
			"person":          []string{personID.String()},
			"changed":         "2016-05-04T10:11:12Z",
		},
	}}
	raw, err := json.Marshal(objects)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{"serialized_objects": string(raw), "to_delete": false})
	require.NoError(t, err)

	require.NoError(t, f.r.HandleMessage(ctx, payload))

	student, err := f.repo().FindByUUID(ctx, f.model(t, catalog.Student), studentID)
	require.NoError(t, err)
	assert.Equal(t, "LEG-1", student.Get("registration_id"))
	c, ok := student.Changed()
	require.True(t, ok)
	assert.True(t, time.Date(2016, 5, 4, 10, 11, 12, 0, time.UTC).Equal(c), "changed %v", c)

	// The natural key became a stand-in person.
	person, err := f.repo().FindByUUID(ctx, f.model(t, catalog.Person), personID)
	require.NoError(t, err)
	assert.Equal(t, person.ID, student.Get("person"))

	del, err := json.Marshal(map[string]any{"serialized_objects": string(raw), "to_delete": true})
	require.NoError(t, err)
	require.NoError(t, f.r.HandleMessage(ctx, del))

	_, err = f.repo().FindByUUID(ctx, f.model(t, catalog.Student), studentID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestHandleMessage_Malformed(t *testing.T) {
	f := newFixture(t)

	err := f.r.HandleMessage(context.Background(), []byte(`not json`))
	require.ErrorIs(t, err, envelope.ErrMalformed)
}
