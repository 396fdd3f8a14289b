package app

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"buildscope/internal/ai"
	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/repository"
)

var testLog = logger.Nop()

type fakeProjects struct {
	mu       sync.Mutex
	projects map[string]*model.Project
	scopes   map[string]*model.Scope
}

func newFakeProjects(projects ...model.Project) *fakeProjects {
	f := &fakeProjects{projects: map[string]*model.Project{}, scopes: map[string]*model.Scope{}}
	for i := range projects {
		p := projects[i]
		f.projects[p.ID] = &p
	}
	return f
}

func (f *fakeProjects) GetByIDAndOwner(_ context.Context, id string, ownerID uint) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.OwnerID != ownerID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProjects) Create(_ context.Context, project *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if project.ID == "" {
		project.ID = "generated-id"
	}
	project.CreatedAt = time.Now()
	cp := *project
	f.projects[project.ID] = &cp
	return nil
}

func (f *fakeProjects) ListByOwner(_ context.Context, ownerID uint) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Project
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeProjects) CountByOwner(_ context.Context, ownerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.projects {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeProjects) GetDetail(ctx context.Context, id string, ownerID uint) (*model.Project, error) {
	p, err := f.GetByIDAndOwner(ctx, id, ownerID)
	if p != nil {
		p.Scope = f.scopes[id]
	}
	return p, err
}

func (f *fakeProjects) GetScope(_ context.Context, projectID string) (*model.Scope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scopes[projectID], nil
}

func (f *fakeProjects) Delete(_ context.Context, id string, ownerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(f.projects, id)
	return nil
}

// fakeTurnStore mimics ChatTurnRepository: seq allocation and the derived
// document upsert happen together under one lock.
type fakeTurnStore struct {
	mu        sync.Mutex
	turns     []model.ChatTurn
	scopes    map[string]model.Scope
	proposals map[string]model.Proposal
	nextID    uint
	commitErr error
	commits   int
}

func newFakeTurnStore(turns ...model.ChatTurn) *fakeTurnStore {
	return &fakeTurnStore{
		turns:     turns,
		scopes:    map[string]model.Scope{},
		proposals: map[string]model.Proposal{},
		nextID:    uint(len(turns)) + 1,
	}
}

func (f *fakeTurnStore) ListByProject(_ context.Context, projectID string) ([]model.ChatTurn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ChatTurn
	for _, t := range f.turns {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTurnStore) ListRecentByType(ctx context.Context, projectID string, convType model.ConversationType, limit int) ([]model.ChatTurn, error) {
	all, _ := f.ListByProject(ctx, projectID)
	return Window(FilterByType(all, convType), limit), nil
}

func (f *fakeTurnStore) CommitTurn(_ context.Context, commit *repository.TurnCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	var maxSeq int64
	for _, t := range f.turns {
		if t.ProjectID == commit.ProjectID && t.Seq > maxSeq {
			maxSeq = t.Seq
		}
	}
	for i, turn := range []*model.ChatTurn{&commit.User, &commit.Assistant} {
		turn.ID = f.nextID
		f.nextID++
		turn.ProjectID = commit.ProjectID
		turn.Type = commit.Type
		turn.Seq = maxSeq + int64(i) + 1
		f.turns = append(f.turns, *turn)
	}
	if commit.UpdateDocument {
		switch commit.Type {
		case model.ConversationScope:
			f.scopes[commit.ProjectID] = model.Scope{ProjectID: commit.ProjectID, Content: commit.Assistant.Content, Status: model.ScopeStatusDraft}
		case model.ConversationProposal:
			p, ok := f.proposals[commit.ProjectID]
			if !ok {
				p = model.Proposal{ProjectID: commit.ProjectID, Status: model.ProposalStatusPending}
			}
			p.Content = commit.Assistant.Content
			f.proposals[commit.ProjectID] = p
		}
	}
	f.commits++
	return nil
}

func (f *fakeTurnStore) count(projectID string) int {
	turns, _ := f.ListByProject(context.Background(), projectID)
	return len(turns)
}

type fakeLLM struct {
	mu       sync.Mutex
	deltas   []string
	endErr   error
	openErr  error
	requests []ai.StreamRequest
	ctxs     []context.Context
}

func (f *fakeLLM) OpenStream(ctx context.Context, req ai.StreamRequest) (ai.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.ctxs = append(f.ctxs, ctx)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeStream{deltas: append([]string(nil), f.deltas...), endErr: f.endErr}, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeStream struct {
	deltas []string
	endErr error
	closed bool
}

func (s *fakeStream) Recv() (string, error) {
	if len(s.deltas) > 0 {
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return d, nil
	}
	if s.endErr != nil {
		return "", s.endErr
	}
	return "", io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	windows map[string][]model.ChatTurn
	dirty   map[string]bool
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{windows: map[string][]model.ChatTurn{}, dirty: map[string]bool{}}
}

func cacheKey(projectID string, convType model.ConversationType) string {
	return projectID + ":" + string(convType)
}

func (c *fakeCache) GetHistory(_ context.Context, projectID string, convType model.ConversationType) ([]model.ChatTurn, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turns, ok := c.windows[cacheKey(projectID, convType)]
	return turns, ok, nil
}

func (c *fakeCache) SetHistory(_ context.Context, projectID string, convType model.ConversationType, turns []model.ChatTurn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows[cacheKey(projectID, convType)] = turns
	return nil
}

func (c *fakeCache) DeleteHistory(_ context.Context, projectID string, convType model.ConversationType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.windows, cacheKey(projectID, convType))
	delete(c.dirty, cacheKey(projectID, convType))
	c.deletes++
	return nil
}

func (c *fakeCache) MarkDirty(_ context.Context, projectID string, convType model.ConversationType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[cacheKey(projectID, convType)] = true
	return nil
}

func (c *fakeCache) IsDirty(_ context.Context, projectID string, convType model.ConversationType) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[cacheKey(projectID, convType)], nil
}
