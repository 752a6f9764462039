package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"teamboard/internal/agent"
	"teamboard/internal/calendar"
	"teamboard/internal/extract"
	"teamboard/internal/model"
	"teamboard/internal/repository"
)

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*model.User
	saved []model.OAuthToken
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{byID: map[string]*model.User{}}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if strings.EqualFold(e.Email, u.Email) {
			return repository.ErrDuplicate
		}
	}
	c := *u
	m.byID[u.ID] = &c
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) List(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name, cur.Email, cur.Avatar, cur.UpdatedAt = u.Name, u.Email, u.Avatar, u.UpdatedAt
	if u.PasswordHash != "" {
		cur.PasswordHash = u.PasswordHash
	}
	return nil
}

func (m *memUsers) SaveCalendarToken(_ context.Context, userID string, tok model.OAuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Calendar != nil && tok.RefreshToken == "" {
		tok.RefreshToken = u.Calendar.RefreshToken
	}
	u.Calendar = &tok
	m.saved = append(m.saved, tok)
	return nil
}

type memProjects struct {
	mu            sync.Mutex
	byID          map[string]*model.Project
	memberWrites  int
	statusWrites  []model.ProjectStatus
	failStatus    error
	statusWritten chan struct{}
	// beforeStatus runs inside the status write, before the compare
	beforeStatus func(p *model.Project)
}

func newMemProjects(projects ...model.Project) *memProjects {
	m := &memProjects{byID: map[string]*model.Project{}, statusWritten: make(chan struct{}, 16)}
	for i := range projects {
		p := projects[i]
		m.byID[p.ID] = &p
	}
	return m
}

func (m *memProjects) get(id string) model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

func (m *memProjects) Insert(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.byID[p.ID] = &c
	return nil
}

func (m *memProjects) FindByID(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	c.MemberIDs = append([]string(nil), p.MemberIDs...)
	return &c, nil
}

func (m *memProjects) FindByIDs(_ context.Context, ids []string) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Project
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProjects) List(context.Context) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Project, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (m *memProjects) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
	all, _ := m.List(ctx)
	var out []model.Project
	for i := range all {
		if all[i].HasMember(userID) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (m *memProjects) Update(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *p
	m.byID[p.ID] = &c
	return nil
}

func (m *memProjects) UpdateMembers(_ context.Context, id string, memberIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.MemberIDs = append([]string(nil), memberIDs...)
	m.memberWrites++
	return nil
}

func (m *memProjects) UpdateStatusFrom(_ context.Context, id string, from, to model.ProjectStatus) (bool, error) {
	m.mu.Lock()
	defer func() {
		m.mu.Unlock()
		m.statusWritten <- struct{}{}
	}()
	if m.failStatus != nil {
		return false, m.failStatus
	}
	if m.beforeStatus != nil {
		m.beforeStatus(m.byID[id])
	}
	p, ok := m.byID[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	m.statusWrites = append(m.statusWrites, to)
	return true, nil
}

func (m *memProjects) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProjects) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *memProjects) CountPeople(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]struct{}{}
	for _, p := range m.byID {
		seen[p.OwnerID] = struct{}{}
		for _, id := range p.MemberIDs {
			seen[id] = struct{}{}
		}
	}
	return len(seen), nil
}

type memTasks struct {
	mu        sync.Mutex
	byID      map[string]*model.Task
	failAfter int // Insert fails once this many tasks were inserted; 0 disables
	inserted  int
	reorders  [][]model.ReorderItem
}

func newMemTasks(tasks ...model.Task) *memTasks {
	m := &memTasks{byID: map[string]*model.Task{}}
	for i := range tasks {
		t := tasks[i]
		m.byID[t.ID] = &t
	}
	return m
}

func (m *memTasks) all() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Task, 0, len(m.byID))
	for _, t := range m.byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Order != out[b].Order {
			return out[a].Order < out[b].Order
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func (m *memTasks) Insert(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && m.inserted >= m.failAfter {
		return errors.New("insert failed")
	}
	c := *t
	m.byID[t.ID] = &c
	m.inserted++
	return nil
}

func (m *memTasks) FindByID(_ context.Context, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *memTasks) filter(keep func(*model.Task) bool) []model.Task {
	out := []model.Task{}
	for _, t := range m.all() {
		if keep(&t) {
			out = append(out, t)
		}
	}
	return out
}

func (m *memTasks) ListByProject(_ context.Context, projectID string) ([]model.Task, error) {
	return m.filter(func(t *model.Task) bool { return t.ProjectID == projectID }), nil
}

func (m *memTasks) ListByAssignee(_ context.Context, userID string) ([]model.Task, error) {
	out := m.filter(func(t *model.Task) bool {
		for _, a := range t.AssigneeIDs {
			if a == userID {
				return true
			}
		}
		return false
	})
	sort.SliceStable(out, func(a, b int) bool {
		da, db := out[a].DueDate, out[b].DueDate
		switch {
		case da == nil:
			return false
		case db == nil:
			return true
		default:
			return da.Before(*db)
		}
	})
	return out, nil
}

func (m *memTasks) ListDone(_ context.Context, since time.Time) ([]model.Task, error) {
	return m.filter(func(t *model.Task) bool {
		return t.Status == model.TaskDone && !t.UpdatedAt.Before(since)
	}), nil
}

func (m *memTasks) StatusesByProject(ctx context.Context, projectID string) ([]model.TaskStatus, error) {
	tasks, _ := m.ListByProject(ctx, projectID)
	out := make([]model.TaskStatus, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Status
	}
	return out, nil
}

func (m *memTasks) CountByStatus(context.Context) (map[model.TaskStatus]int, error) {
	out := map[model.TaskStatus]int{}
	for _, t := range m.all() {
		out[t.Status]++
	}
	return out, nil
}

func (m *memTasks) NextOrder(_ context.Context, projectID string, status model.TaskStatus) (int, error) {
	next := 0
	for _, t := range m.all() {
		if t.ProjectID == projectID && t.Status == status && t.Order+1 > next {
			next = t.Order + 1
		}
	}
	return next, nil
}

func (m *memTasks) Update(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *t
	m.byID[t.ID] = &c
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memTasks) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.byID {
		if t.ProjectID == projectID {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memTasks) Reorder(_ context.Context, items []model.ReorderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if t, ok := m.byID[it.ID]; ok {
			t.Order, t.Status = it.Order, it.Status
		}
	}
	m.reorders = append(m.reorders, items)
	return nil
}

type sentEvent struct {
	Room  string // empty for global
	Event string
	Data  any
}

type recorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recorder) Global(_ context.Context, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Event: event, Data: data})
}

func (r *recorder) ToRoom(_ context.Context, room, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{Room: room, Event: event, Data: data})
}

func (r *recorder) named(event string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// wire renders data the way observers receive it.
func wire(data any) map[string]any {
	b, _ := json.Marshal(data)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

type published struct {
	key     string
	payload any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: key, payload: payload})
	return nil
}

type fakeClassifier struct {
	resp     *agent.ChatResponse
	err      error
	insight  *agent.AnalyzeResponse
	calls    int
	lastChat agent.ChatRequest
}

func (f *fakeClassifier) Chat(_ context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	f.calls++
	f.lastChat = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeClassifier) Analyze(context.Context, string) (*agent.AnalyzeResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.insight, nil
}

type fakeCalendar struct {
	events   []calendar.Event
	fresh    *oauth2.Token
	err      error
	inserted []calendar.Event
	code     string
}

func (f *fakeCalendar) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.code = code
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.Token{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (f *fakeCalendar) ListUpcoming(context.Context, *oauth2.Token, time.Time) ([]calendar.Event, *oauth2.Token, error) {
	if f.err != nil {
		return nil, f.fresh, f.err
	}
	return f.events, f.fresh, nil
}

func (f *fakeCalendar) Insert(_ context.Context, _ *oauth2.Token, ev calendar.Event) (*calendar.Event, *oauth2.Token, error) {
	if f.err != nil {
		return nil, f.fresh, f.err
	}
	f.inserted = append(f.inserted, ev)
	return &ev, f.fresh, nil
}

var _ TextExtractor = extract.New()
