package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	activitydomain "nexus-pm/backend/internal/activity/domain"
	issuedomain "nexus-pm/backend/internal/issue/domain"
	membershipdomain "nexus-pm/backend/internal/membership/domain"
	"nexus-pm/backend/internal/platform/rbac"
	"nexus-pm/backend/internal/sprint/domain"
	"nexus-pm/backend/internal/sprint/repository"
)

// fakeStore backs both the sprint and issue repositories so Complete and
// Delete can see issue rows, the way the real transactions do.
type fakeStore struct {
	mu      sync.Mutex
	sprints map[string]*domain.Sprint
	issues  map[string]*issuedomain.Issue
}

func newFakeStore() *fakeStore {
	return &fakeStore{sprints: map[string]*domain.Sprint{}, issues: map[string]*issuedomain.Issue{}}
}

type fakeSprintRepo struct{ store *fakeStore }

func (f *fakeSprintRepo) GetByID(_ context.Context, id string) (*domain.Sprint, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if s, ok := f.store.sprints[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeSprintRepo) ListByProject(_ context.Context, projectID string) ([]*domain.Sprint, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []*domain.Sprint
	for _, s := range f.store.sprints {
		if s.ProjectID == projectID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSprintRepo) GetActiveByProject(_ context.Context, projectID string) (*domain.Sprint, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, s := range f.store.sprints {
		if s.ProjectID == projectID && s.Status == domain.StatusActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSprintRepo) Create(_ context.Context, s *domain.Sprint) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *s
	f.store.sprints[s.ID] = &cp
	return nil
}

func (f *fakeSprintRepo) Update(_ context.Context, s *domain.Sprint) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *s
	f.store.sprints[s.ID] = &cp
	return nil
}

// Activate mirrors the transactional check: the mutex stands in for the row
// lock and the partial unique index.
func (f *fakeSprintRepo) Activate(_ context.Context, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.sprints[id]
	if !ok || s.Status != domain.StatusPlanned {
		return repository.ErrNotPlanned
	}
	for _, other := range f.store.sprints {
		if other.ProjectID == s.ProjectID && other.Status == domain.StatusActive {
			return repository.ErrActiveSprintExists
		}
	}
	s.Status = domain.StatusActive
	if s.StartDate == nil {
		now := time.Now().UTC()
		s.StartDate = &now
	}
	return nil
}

func (f *fakeSprintRepo) Complete(_ context.Context, id string) (*domain.Sprint, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.sprints[id]
	if !ok || s.Status != domain.StatusActive {
		return nil, repository.ErrNotActive
	}
	velocity := 0
	for _, i := range f.store.issues {
		if i.SprintID != nil && *i.SprintID == id && i.Status.Completed() && i.StoryPoints != nil {
			velocity += *i.StoryPoints
		}
	}
	now := time.Now().UTC()
	s.Status = domain.StatusCompleted
	s.Velocity = &velocity
	s.CompletedAt = &now
	cp := *s
	return &cp, nil
}

func (f *fakeSprintRepo) Cancel(_ context.Context, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.sprints[id]
	if !ok || s.Status == domain.StatusCompleted {
		return repository.ErrCompleted
	}
	s.Status = domain.StatusCancelled
	return nil
}

func (f *fakeSprintRepo) Delete(_ context.Context, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	s, ok := f.store.sprints[id]
	if !ok {
		return nil
	}
	if s.Status == domain.StatusActive {
		return repository.ErrActive
	}
	for _, i := range f.store.issues {
		if i.SprintID != nil && *i.SprintID == id {
			i.SprintID = nil
		}
	}
	delete(f.store.sprints, id)
	return nil
}

type fakeIssueRepo struct{ store *fakeStore }

func (f *fakeIssueRepo) GetByID(_ context.Context, id string) (*issuedomain.Issue, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if i, ok := f.store.issues[id]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeIssueRepo) GetByKey(_ context.Context, _, _ string) (*issuedomain.Issue, error) {
	return nil, nil
}

func (f *fakeIssueRepo) ListByProject(_ context.Context, _ string) ([]*issuedomain.Issue, error) {
	return nil, nil
}

func (f *fakeIssueRepo) ListBySprint(_ context.Context, sprintID string) ([]*issuedomain.Issue, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []*issuedomain.Issue
	for _, i := range f.store.issues {
		if i.SprintID != nil && *i.SprintID == sprintID {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) ListBacklog(_ context.Context, projectID string) ([]*issuedomain.Issue, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []*issuedomain.Issue
	for _, i := range f.store.issues {
		if i.ProjectID == projectID && i.SprintID == nil {
			cp := *i
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) CreateWithKey(_ context.Context, i *issuedomain.Issue) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *i
	f.store.issues[i.ID] = &cp
	return nil
}

func (f *fakeIssueRepo) Update(_ context.Context, i *issuedomain.Issue) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	cp := *i
	f.store.issues[i.ID] = &cp
	return nil
}

func (f *fakeIssueRepo) Delete(_ context.Context, id string) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	delete(f.store.issues, id)
	return nil
}

type fakeMemberships struct {
	byKey map[string]*membershipdomain.Membership
}

func (f *fakeMemberships) GetByProjectAndUser(_ context.Context, projectID, userID string) (*membershipdomain.Membership, error) {
	return f.byKey[projectID+"/"+userID], nil
}

type fakeActivityRepo struct{ mu sync.Mutex }

func (f *fakeActivityRepo) Create(_ context.Context, _ *activitydomain.Activity) error { return nil }
func (f *fakeActivityRepo) ListByProject(_ context.Context, _ string, _ int) ([]*activitydomain.Activity, error) {
	return nil, nil
}

type fixture struct {
	svc   *Service
	store *fakeStore
}

func newFixture() *fixture {
	store := newFakeStore()
	members := &fakeMemberships{byKey: map[string]*membershipdomain.Membership{
		"p1/u1": {ID: "m1", ProjectID: "p1", UserID: "u1", Role: membershipdomain.RoleLead},
	}}
	svc := NewService(&fakeSprintRepo{store: store}, &fakeIssueRepo{store: store},
		&fakeActivityRepo{}, rbac.NewChecker(members), zap.NewNop())
	return &fixture{svc: svc, store: store}
}

func (fx *fixture) createSprint(t *testing.T, name string) *domain.Sprint {
	t.Helper()
	sp, err := fx.svc.Create(context.Background(), "u1", CreateInput{ProjectID: "p1", Name: name})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sp
}

func (fx *fixture) addIssue(id string, sprintID *string, status issuedomain.Status, points *int) {
	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	fx.store.issues[id] = &issuedomain.Issue{
		ID: id, ProjectID: "p1", SprintID: sprintID, Status: status, StoryPoints: points,
	}
}

func intp(v int) *int { return &v }

func TestCreateStartsPlanned(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	if sp.Status != domain.StatusPlanned {
		t.Fatalf("status = %s, want PLANNED", sp.Status)
	}
}

func TestStartLifecycle(t *testing.T) {
	fx := newFixture()
	first := fx.createSprint(t, "Sprint 1")
	second := fx.createSprint(t, "Sprint 2")

	started, err := fx.svc.Start(context.Background(), "u1", first.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != domain.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", started.Status)
	}

	if _, err := fx.svc.Start(context.Background(), "u1", second.ID); !errors.Is(err, ErrSprintAlreadyActive) {
		t.Fatalf("expected ErrSprintAlreadyActive, got %v", err)
	}
	if _, err := fx.svc.Start(context.Background(), "u1", first.ID); !errors.Is(err, ErrNotPlanned) {
		t.Fatalf("expected ErrNotPlanned on restart, got %v", err)
	}
}

func TestStartStampsStartDate(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	if sp.StartDate != nil {
		t.Fatalf("new sprint has start date %v, want none", sp.StartDate)
	}

	started, err := fx.svc.Start(context.Background(), "u1", sp.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.StartDate == nil {
		t.Fatal("start date not set on start")
	}
}

func TestStartKeepsPlannedStartDate(t *testing.T) {
	fx := newFixture()
	planned := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	sp, err := fx.svc.Create(context.Background(), "u1", CreateInput{
		ProjectID: "p1", Name: "Sprint 1", StartDate: &planned,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	started, err := fx.svc.Start(context.Background(), "u1", sp.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.StartDate == nil || !started.StartDate.Equal(planned) {
		t.Fatalf("start date = %v, want planned %v", started.StartDate, planned)
	}
}

func TestConcurrentStartsOnlyOneWins(t *testing.T) {
	fx := newFixture()
	const n = 10
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fx.createSprint(t, "Sprint").ID
	}

	var wg sync.WaitGroup
	results := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Start(context.Background(), "u1", id)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrSprintAlreadyActive) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d starts succeeded, want exactly 1", wins)
	}
}

func TestCompleteSnapshotsVelocity(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	if _, err := fx.svc.Start(context.Background(), "u1", sp.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fx.addIssue("i1", &sp.ID, issuedomain.StatusResolved, intp(5))
	fx.addIssue("i2", &sp.ID, issuedomain.StatusClosed, intp(3))
	fx.addIssue("i3", &sp.ID, issuedomain.StatusInProgress, intp(8)) // incomplete, not counted
	fx.addIssue("i4", &sp.ID, issuedomain.StatusResolved, nil)      // no points
	fx.addIssue("i5", nil, issuedomain.StatusResolved, intp(13))    // other sprint scope

	done, err := fx.svc.Complete(context.Background(), "u1", sp.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("unexpected sprint after complete: %+v", done)
	}
	if done.Velocity == nil || *done.Velocity != 8 {
		t.Fatalf("velocity = %v, want 8", done.Velocity)
	}

	if _, err := fx.svc.Complete(context.Background(), "u1", sp.ID); !errors.Is(err, ErrSprintNotActive) {
		t.Fatalf("expected ErrSprintNotActive on double complete, got %v", err)
	}
}

func TestCompleteRequiresActive(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	if _, err := fx.svc.Complete(context.Background(), "u1", sp.ID); !errors.Is(err, ErrSprintNotActive) {
		t.Fatalf("expected ErrSprintNotActive, got %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	fx := newFixture()
	planned := fx.createSprint(t, "Planned")
	active := fx.createSprint(t, "Active")
	if _, err := fx.svc.Start(context.Background(), "u1", active.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := fx.svc.Cancel(context.Background(), "u1", planned.ID); err != nil {
		t.Fatalf("cancel planned: %v", err)
	}
	cancelled, err := fx.svc.Cancel(context.Background(), "u1", active.ID)
	if err != nil {
		t.Fatalf("cancel active: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}

	done := fx.createSprint(t, "Done")
	if _, err := fx.svc.Start(context.Background(), "u1", done.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := fx.svc.Complete(context.Background(), "u1", done.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := fx.svc.Cancel(context.Background(), "u1", done.ID); !errors.Is(err, ErrSprintCompleted) {
		t.Fatalf("expected ErrSprintCompleted, got %v", err)
	}
}

func TestDeleteDetachesIssues(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	fx.addIssue("i1", &sp.ID, issuedomain.StatusOpen, nil)

	if err := fx.svc.Delete(context.Background(), "u1", sp.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	if _, ok := fx.store.sprints[sp.ID]; ok {
		t.Fatal("sprint still present")
	}
	if fx.store.issues["i1"].SprintID != nil {
		t.Fatal("issue still attached to deleted sprint")
	}
}

func TestDeleteActiveSprintRejected(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")
	if _, err := fx.svc.Start(context.Background(), "u1", sp.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := fx.svc.Delete(context.Background(), "u1", sp.ID); !errors.Is(err, ErrSprintActive) {
		t.Fatalf("expected ErrSprintActive, got %v", err)
	}
}

func TestNonMemberGetsNotFound(t *testing.T) {
	fx := newFixture()
	sp := fx.createSprint(t, "Sprint 1")

	if _, err := fx.svc.Get(context.Background(), "outsider", sp.ID); !errors.Is(err, ErrSprintNotFound) {
		t.Fatalf("expected ErrSprintNotFound, got %v", err)
	}
	if _, err := fx.svc.Create(context.Background(), "outsider", CreateInput{ProjectID: "p1", Name: "X"}); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}
