package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JonMunkholm/sheetstore/internal/schema"
)

// StoreSuite runs the same behaviour checks against both implementations.
type StoreSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
	ctx      context.Context
}

func TestDemoStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Store { return NewDemoStore(Options{}) }})
}

func TestRecordStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() Store { return NewRecordStore(newFakeTables(), Options{}) }})
}

func (s *StoreSuite) SetupTest() {
	s.ctx = ContextWithActor(context.Background(), "tester")
	s.store = s.newStore()
	s.Require().NoError(s.store.ProvisionSchema(s.ctx))
}

func (s *StoreSuite) create(t schema.EntityType, f Fields) Record {
	s.T().Helper()
	m, err := s.store.Create(s.ctx, t, f)
	s.Require().NoError(err)
	s.Require().NoError(m.AuditErr)
	return m.Record
}

func (s *StoreSuite) onboarding() Record {
	enq := s.create(schema.Enquiry, Fields{"contact_name": "Grace", "status": "new"})
	return s.create(schema.Onboarding, Fields{"enquiry_id": enq.ID, "status": "open", "phase": "intake"})
}

func (s *StoreSuite) TestSequentialPersonIDs() {
	a := s.create(schema.Person, Fields{"full_name": "Ada Lovelace"})
	b := s.create(schema.Person, Fields{"full_name": "Alan Turing"})

	s.Equal("PER-0001", a.ID)
	s.Equal("PER-0002", b.ID)

	got, ok, err := s.store.Get(s.ctx, schema.Person, "PER-0002")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("Alan Turing", got.Fields["full_name"])
}

func (s *StoreSuite) TestRoundTrip() {
	in := Fields{
		"full_name":     "Ada Lovelace",
		"date_of_birth": "1815-12-10",
		"nationality":   "GB",
		"email":         "ada@example.com",
	}
	rec := s.create(schema.Person, in)

	got, ok, err := s.store.Get(s.ctx, schema.Person, rec.ID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(in, got.Fields)
	s.Equal(schema.Person, got.Type)
}

func (s *StoreSuite) TestCreateNormalizesValues() {
	onb := s.onboarding()
	rec := s.create(schema.RiskAssessment, Fields{
		"onboarding_id": onb.ID,
		"score":         "$1,250.50",
		"rating":        "HIGH",
		"assessed_on":   "03/15/2024",
	})
	s.Equal("1250.50", rec.Fields["score"])
	s.Equal("high", rec.Fields["rating"])
	s.Equal("2024-03-15", rec.Fields["assessed_on"])
}

func (s *StoreSuite) TestGetMissing() {
	_, ok, err := s.store.Get(s.ctx, schema.Person, "PER-9999")
	s.NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestUnknownEntityType() {
	_, _, err := s.store.Get(s.ctx, schema.EntityType("Widget"), "W-1")
	s.ErrorIs(err, schema.ErrUnknownEntityType)

	_, err = s.store.Create(s.ctx, schema.EntityType("Widget"), Fields{})
	s.ErrorIs(err, schema.ErrUnknownEntityType)
}

func (s *StoreSuite) TestCreateValidation() {
	_, err := s.store.Create(s.ctx, schema.Person, Fields{
		"id":            "PER-0042",
		"favourite_pet": "cat",
		"date_of_birth": "not a date",
	})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)

	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	s.ElementsMatch([]string{"id", "favourite_pet", "date_of_birth", "full_name"}, fields)

	list, err := s.store.List(s.ctx, schema.Person, Query{})
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *StoreSuite) TestCreateRejectsDanglingReference() {
	_, err := s.store.Create(s.ctx, schema.PersonRole, Fields{"person_id": "PER-0404", "role": "director"})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("person_id", verr.Fields[0].Field)
}

func (s *StoreSuite) TestPartialUpdatePreservesOtherFields() {
	rec := s.create(schema.Person, Fields{"full_name": "Ada", "nationality": "GB", "email": "ada@example.com"})

	m, err := s.store.Update(s.ctx, schema.Person, rec.ID, Fields{"email": "countess@example.com"})
	s.Require().NoError(err)
	s.NoError(m.AuditErr)

	got, ok, err := s.store.Get(s.ctx, schema.Person, rec.ID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(Fields{"full_name": "Ada", "nationality": "GB", "email": "countess@example.com"}, got.Fields)
}

func (s *StoreSuite) TestUpdateClearsField() {
	rec := s.create(schema.Person, Fields{"full_name": "Ada", "nationality": "GB"})

	_, err := s.store.Update(s.ctx, schema.Person, rec.ID, Fields{"nationality": ""})
	s.Require().NoError(err)

	got, _, err := s.store.Get(s.ctx, schema.Person, rec.ID)
	s.Require().NoError(err)
	s.NotContains(got.Fields, "nationality")
}

func (s *StoreSuite) TestUpdateCannotClearRequired() {
	rec := s.create(schema.Person, Fields{"full_name": "Ada"})
	_, err := s.store.Update(s.ctx, schema.Person, rec.ID, Fields{"full_name": ""})
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *StoreSuite) TestUpdateMissing() {
	_, err := s.store.Update(s.ctx, schema.Person, "PER-0404", Fields{"email": "x@example.com"})
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestUpdateAuditsDiff() {
	rec := s.create(schema.Person, Fields{"full_name": "Ada", "email": "a@example.com"})
	m, err := s.store.Update(s.ctx, schema.Person, rec.ID, Fields{"email": "b@example.com"})
	s.Require().NoError(err)

	entries, err := s.store.List(s.ctx, schema.AuditLogEntry, Query{}.Where("entity_id", rec.ID).Where("action", ActionUpdate))
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(m.AuditID, entries[0].ID)
	s.Equal("tester", entries[0].Fields["actor"])
	s.JSONEq(`{"changes":{"email":{"old":"a@example.com","new":"b@example.com"}}}`, entries[0].Fields["details"])
}

func (s *StoreSuite) TestDoubleDeleteOfLeaf() {
	onb := s.onboarding()
	per := s.create(schema.Person, Fields{"full_name": "Ada"})
	scr := s.create(schema.Screening, Fields{"person_id": per.ID, "onboarding_id": onb.ID, "result": "clear"})

	_, err := s.store.Delete(s.ctx, schema.Screening, scr.ID)
	s.Require().NoError(err)

	_, err = s.store.Delete(s.ctx, schema.Screening, scr.ID)
	s.ErrorIs(err, ErrNotFound)

	_, ok, err := s.store.Get(s.ctx, schema.Screening, scr.ID)
	s.NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestReferencedPersonCannotBeDeleted() {
	per := s.create(schema.Person, Fields{"full_name": "Ada"})
	role := s.create(schema.PersonRole, Fields{"person_id": per.ID, "role": "director"})

	_, err := s.store.Delete(s.ctx, schema.Person, per.ID)
	s.ErrorIs(err, ErrInUse)

	_, err = s.store.Delete(s.ctx, schema.PersonRole, role.ID)
	s.Require().NoError(err)
	_, err = s.store.Delete(s.ctx, schema.Person, per.ID)
	s.NoError(err)
}

func (s *StoreSuite) TestSoftDeleteKeepsDependentsReadable() {
	onb := s.onboarding()
	per := s.create(schema.Person, Fields{"full_name": "Ada"})
	scr := s.create(schema.Screening, Fields{"person_id": per.ID, "onboarding_id": onb.ID})

	m, err := s.store.Delete(s.ctx, schema.Onboarding, onb.ID)
	s.Require().NoError(err)
	s.Equal(schema.StatusDeleted, m.Record.Fields["status"])

	got, ok, err := s.store.Get(s.ctx, schema.Onboarding, onb.ID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(schema.StatusDeleted, got.Fields["status"])
	s.Equal("intake", got.Fields["phase"])

	dep, ok, err := s.store.Get(s.ctx, schema.Screening, scr.ID)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(onb.ID, dep.Fields["onboarding_id"])

	_, err = s.store.Delete(s.ctx, schema.Onboarding, onb.ID)
	s.ErrorIs(err, ErrNotFound)

	// New rows may not point at the retired onboarding.
	_, err = s.store.Create(s.ctx, schema.RiskAssessment, Fields{"onboarding_id": onb.ID})
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *StoreSuite) TestUpdateResendingRetiredReference() {
	onb := s.onboarding()
	per := s.create(schema.Person, Fields{"full_name": "Ada"})
	scr := s.create(schema.Screening, Fields{"person_id": per.ID, "onboarding_id": onb.ID, "result": "pending"})

	_, err := s.store.Delete(s.ctx, schema.Onboarding, onb.ID)
	s.Require().NoError(err)

	// The whole row is sent back, unchanged onboarding_id included.
	m, err := s.store.Update(s.ctx, schema.Screening, scr.ID, Fields{
		"person_id":     per.ID,
		"onboarding_id": onb.ID,
		"result":        "clear",
	})
	s.Require().NoError(err)
	s.Equal("clear", m.Record.Fields["result"])

	// Moving the row onto a retired onboarding is still refused.
	other := s.onboarding()
	_, err = s.store.Update(s.ctx, schema.Screening, scr.ID, Fields{"onboarding_id": other.ID})
	s.Require().NoError(err)
	_, err = s.store.Update(s.ctx, schema.Screening, scr.ID, Fields{"onboarding_id": onb.ID})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("onboarding_id", verr.Fields[0].Field)
}

func (s *StoreSuite) TestAuditLogIsImmutable() {
	s.create(schema.Person, Fields{"full_name": "Ada"})
	entries, err := s.store.List(s.ctx, schema.AuditLogEntry, Query{})
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)

	_, err = s.store.Create(s.ctx, schema.AuditLogEntry, Fields{"actor": "me"})
	s.ErrorIs(err, ErrImmutable)
	_, err = s.store.Update(s.ctx, schema.AuditLogEntry, entries[0].ID, Fields{"actor": "me"})
	s.ErrorIs(err, ErrImmutable)
	_, err = s.store.Delete(s.ctx, schema.AuditLogEntry, entries[0].ID)
	s.ErrorIs(err, ErrImmutable)
}

func (s *StoreSuite) TestEveryMutationIsAudited() {
	per := s.create(schema.Person, Fields{"full_name": "Ada"})
	_, err := s.store.Update(s.ctx, schema.Person, per.ID, Fields{"email": "ada@example.com"})
	s.Require().NoError(err)
	_, err = s.store.Delete(s.ctx, schema.Person, per.ID)
	s.Require().NoError(err)

	entries, err := s.store.List(s.ctx, schema.AuditLogEntry, Query{}.Where("entity_id", per.ID))
	s.Require().NoError(err)
	s.Require().Len(entries, 3)

	actions := []string{entries[0].Fields["action"], entries[1].Fields["action"], entries[2].Fields["action"]}
	s.Equal([]string{ActionCreate, ActionUpdate, ActionDelete}, actions)
	for _, e := range entries {
		s.Equal(string(schema.Person), e.Fields["entity_type"])
		s.NotEmpty(e.Fields["timestamp"])
	}
}

func (s *StoreSuite) TestListFilters() {
	s.create(schema.Person, Fields{"full_name": "Ada Lovelace", "nationality": "GB"})
	s.create(schema.Person, Fields{"full_name": "Alan Turing", "nationality": "GB"})
	s.create(schema.Person, Fields{"full_name": "Grace Hopper", "nationality": "US"})
	s.create(schema.Person, Fields{"full_name": "ÉDITH Clarke", "nationality": "US"})

	names := func(q Query) []string {
		recs, err := s.store.List(s.ctx, schema.Person, q)
		s.Require().NoError(err)
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.Fields["full_name"]
		}
		return out
	}

	s.Equal([]string{"Ada Lovelace", "Alan Turing"}, names(Query{}.Where("nationality", "GB")))
	s.Empty(names(Query{}.Where("nationality", "gb")))
	s.Equal([]string{"Alan Turing", "Grace Hopper", "ÉDITH Clarke"},
		names(Query{Conditions: []Condition{{Column: "full_name", Op: OpContains, Value: "R"}}}))
	s.Equal([]string{"ÉDITH Clarke"}, names(Query{Conditions: []Condition{{Column: "full_name", Op: OpPrefix, Value: "édith"}}}))
	s.Equal([]string{"Ada Lovelace"}, names(Query{Conditions: []Condition{
		{Column: "nationality", Op: OpEq, Value: "GB"},
		{Column: "full_name", Op: OpContains, Value: "love"},
	}}))
	s.Equal([]string{"Alan Turing", "Grace Hopper"}, names(Query{Offset: 1, Limit: 2}))
	s.Equal([]string{"Grace Hopper"}, names(Query{}.Where("id", "PER-0003")))

	_, err := s.store.List(s.ctx, schema.Person, Query{}.Where("shoe_size", "9"))
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *StoreSuite) TestProvisionTwice() {
	s.NoError(s.store.ProvisionSchema(s.ctx))
	s.NoError(s.store.ProvisionSchema(s.ctx))
}

func (s *StoreSuite) TestConcurrentCreatesGetDistinctIDs() {
	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.store.Create(s.ctx, schema.Person, Fields{"full_name": "P"})
			if err == nil {
				ids[i] = m.Record.ID
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		s.Require().NotEmpty(id)
		s.False(seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRecordStore_ProvisionIsNoOpSecondTime(t *testing.T) {
	fake := newFakeTables()
	st := NewRecordStore(fake, Options{})
	ctx := context.Background()

	require.NoError(t, st.ProvisionSchema(ctx))
	writes := fake.writeCount()
	assert.Equal(t, schema.TableCount(), writes)

	require.NoError(t, st.ProvisionSchema(ctx))
	assert.Equal(t, writes, fake.writeCount())
}

func TestRecordStore_AuditDegraded(t *testing.T) {
	fake := newFakeTables()
	st := NewRecordStore(fake, Options{})
	ctx := context.Background()
	require.NoError(t, st.ProvisionSchema(ctx))

	fake.setFailAppend("audit_log_entries", errors.New("quota"))
	m, err := st.Create(ctx, schema.Person, Fields{"full_name": "Ada"})
	require.NoError(t, err, "data write succeeded")
	assert.ErrorIs(t, m.AuditErr, ErrAuditDegraded)
	assert.False(t, m.AuditOK())
	assert.Equal(t, 1, st.Audit().Pending())
	assert.Equal(t, 1, fake.rowCount("people"))
	assert.Equal(t, 0, fake.rowCount("audit_log_entries"))

	fake.setFailAppend("audit_log_entries", nil)
	m2, err := st.Create(ctx, schema.Person, Fields{"full_name": "Alan"})
	require.NoError(t, err)
	require.NoError(t, m2.AuditErr)
	assert.Equal(t, 0, st.Audit().Pending())

	entries, err := st.List(ctx, schema.AuditLogEntry, Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, m.AuditID, entries[0].ID, "queued entry written first")
	assert.Equal(t, m2.AuditID, entries[1].ID)
}

func TestRecordStore_UnavailableLeavesNoRow(t *testing.T) {
	fake := newFakeTables()
	st := NewRecordStore(fake, Options{})
	ctx := context.Background()
	require.NoError(t, st.ProvisionSchema(ctx))

	fake.setFailAppend("people", ErrUnavailable)
	_, err := st.Create(ctx, schema.Person, Fields{"full_name": "Ada"})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, fake.rowCount("people"))
	assert.Equal(t, 0, fake.rowCount("audit_log_entries"))
}

func TestRecordStore_SeesRowsWrittenElsewhere(t *testing.T) {
	fake := newFakeTables()
	st := NewRecordStore(fake, Options{})
	ctx := context.Background()
	require.NoError(t, st.ProvisionSchema(ctx))

	// Another process appended PER-0007 directly.
	require.NoError(t, fake.AppendRow(ctx, "people", []string{"PER-0007", "Hedy Lamarr"}))

	m, err := st.Create(ctx, schema.Person, Fields{"full_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "PER-0008", m.Record.ID)

	got, ok, err := st.Get(ctx, schema.Person, "PER-0007")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Fields{"full_name": "Hedy Lamarr"}, got.Fields)
}

func TestRecordStore_HeaderMismatchSurfaces(t *testing.T) {
	fake := newFakeTables()
	fake.tabs["people"] = [][]string{{"id", "name"}}
	st := NewRecordStore(fake, Options{})

	err := st.ProvisionSchema(context.Background())
	assert.Error(t, err)
}
