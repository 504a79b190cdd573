package patient

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

type mockRepo struct {
	byID map[string]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: map[string]*Patient{}}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var matched []*Patient
	for _, p := range m.byID {
		if query == "" ||
			strings.Contains(strings.ToLower(p.FirstName), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(p.LastName), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(p.ID), strings.ToLower(query)) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.byID[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	return len(m.byID), nil
}

type mockPurger struct {
	purged []string
}

func (m *mockPurger) DeleteByPatient(_ context.Context, id string) error {
	m.purged = append(m.purged, id)
	return nil
}

func strp(v string) *string       { return &v }
func timep(v time.Time) *time.Time { return &v }

func TestAge(t *testing.T) {
	at := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		dob  *time.Time
		want *int
	}{
		{"no dob", nil, nil},
		{"birthday passed", timep(time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC)), intp(36)},
		{"birthday pending", timep(time.Date(1990, 9, 1, 0, 0, 0, 0, time.UTC)), intp(35)},
		{"birthday today", timep(time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)), intp(36)},
		{"infant", timep(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)), intp(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Patient{DateOfBirth: tc.dob}
			got := p.Age(at)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected nil age, got %d", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("expected age %d, got nil", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("expected age %d, got %d", *tc.want, *got)
			}
		})
	}
}

func intp(v int) *int { return &v }

func TestDemographicsAt_Flags(t *testing.T) {
	at := time.Now()

	full := Patient{
		ID:          "P-1",
		DateOfBirth: timep(time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)),
		Gender:      strp("female"),
	}
	d := full.DemographicsAt(at)
	if !d.HasAge || !d.HasGender || d.Age == nil || d.Gender == nil {
		t.Fatalf("expected full demographics, got %+v", d)
	}

	bare := Patient{ID: "P-2"}
	d = bare.DemographicsAt(at)
	if d.HasAge || d.HasGender || d.Age != nil || d.Gender != nil {
		t.Fatalf("expected empty demographics, got %+v", d)
	}

	blank := Patient{ID: "P-3", Gender: strp("")}
	d = blank.DemographicsAt(at)
	if d.HasGender {
		t.Fatal("blank gender should not count as known")
	}
}

func TestCreate_RequiresID(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	if err := svc.Create(context.Background(), &Patient{FirstName: "Ada"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestCreate_RequiresName(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	if err := svc.Create(context.Background(), &Patient{ID: "P-1"}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestDelete_PurgesResults(t *testing.T) {
	repo := newMockRepo()
	purger := &mockPurger{}
	svc := NewService(repo, purger, nil)
	p := &Patient{ID: "P-1", FirstName: "Ada", LastName: "Lovelace"}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(context.Background(), "P-1"); err != nil {
		t.Fatal(err)
	}
	if len(purger.purged) != 1 || purger.purged[0] != "P-1" {
		t.Fatalf("expected result purge for P-1, got %v", purger.purged)
	}
}

func TestEnsureExists(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, created, err := svc.EnsureExists(ctx, "P-77")
	if err != nil {
		t.Fatal(err)
	}
	if !created || p.ID != "P-77" {
		t.Fatalf("expected new patient P-77, got created=%v %+v", created, p)
	}

	_, created, err = svc.EnsureExists(ctx, "P-77")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second call should not create again")
	}
}

func TestList_Search(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	for _, p := range []*Patient{
		{ID: "P-1", FirstName: "Ada", LastName: "Lovelace"},
		{ID: "P-2", FirstName: "Grace", LastName: "Hopper"},
		{ID: "P-3", FirstName: "Alan", LastName: "Turing"},
	} {
		if err := svc.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, total, err := svc.List(ctx, "lovelace", 20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != "P-1" {
		t.Fatalf("unexpected search result: total=%d %+v", total, got)
	}

	_, total, err = svc.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
}
