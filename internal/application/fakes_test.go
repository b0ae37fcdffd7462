package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepoStore is an in-memory RepoStore.
type fakeRepoStore struct {
	nextID    int64
	repos     map[int64]model.Repository
	settings  map[int64]model.MirrorSettings
	branches  map[int64][]model.Branch
	updateErr error
}

var _ driven.RepoStore = (*fakeRepoStore)(nil)

func newFakeRepoStore() *fakeRepoStore {
	return &fakeRepoStore{
		repos:    map[int64]model.Repository{},
		settings: map[int64]model.MirrorSettings{},
		branches: map[int64][]model.Branch{},
	}
}

func (s *fakeRepoStore) Add(_ context.Context, repo model.Repository) (int64, error) {
	for _, existing := range s.repos {
		if existing.OrganisationID == repo.OrganisationID && existing.Name == repo.Name {
			return 0, driven.ErrRepoAlreadyExists
		}
		if existing.LocalPath == repo.LocalPath {
			return 0, driven.ErrRepoAlreadyExists
		}
	}
	s.nextID++
	repo.ID = s.nextID
	repo.CreatedAt = time.Now().UTC()
	s.repos[repo.ID] = repo
	return repo.ID, nil
}

func (s *fakeRepoStore) GetByID(_ context.Context, id int64) (*model.Repository, error) {
	repo, ok := s.repos[id]
	if !ok {
		return nil, nil
	}
	return &repo, nil
}

func (s *fakeRepoStore) GetByName(_ context.Context, organisationID int64, name string) (*model.Repository, error) {
	for _, repo := range s.repos {
		if repo.OrganisationID == organisationID && repo.Name == name {
			r := repo
			return &r, nil
		}
	}
	return nil, nil
}

func (s *fakeRepoStore) ListByOrganisation(_ context.Context, organisationID int64) ([]model.Repository, error) {
	var out []model.Repository
	for _, repo := range s.repos {
		if repo.OrganisationID == organisationID {
			out = append(out, repo)
		}
	}
	return out, nil
}

func (s *fakeRepoStore) Update(_ context.Context, repo model.Repository) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.repos[repo.ID]; !ok {
		return driven.ErrRepoNotFound
	}
	s.repos[repo.ID] = repo
	return nil
}

func (s *fakeRepoStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.repos[id]; !ok {
		return driven.ErrRepoNotFound
	}
	delete(s.repos, id)
	delete(s.settings, id)
	delete(s.branches, id)
	return nil
}

func (s *fakeRepoStore) SetMirrorSettings(_ context.Context, settings model.MirrorSettings) error {
	s.settings[settings.RepositoryID] = settings
	return nil
}

func (s *fakeRepoStore) GetMirror(_ context.Context, repositoryID int64) (*model.Mirror, error) {
	repo, ok := s.repos[repositoryID]
	if !ok || repo.Kind != model.RepoKindMirror {
		return nil, nil
	}
	settings, ok := s.settings[repositoryID]
	if !ok {
		return nil, nil
	}
	return &model.Mirror{Repository: repo, Settings: settings}, nil
}

func (s *fakeRepoStore) ListAutoSyncMirrors(_ context.Context) ([]model.Mirror, error) {
	var out []model.Mirror
	for id, settings := range s.settings {
		repo, ok := s.repos[id]
		if !ok || !settings.AutoSync || repo.Status == model.RepoStatusArchived {
			continue
		}
		out = append(out, model.Mirror{Repository: repo, Settings: settings})
	}
	return out, nil
}

func (s *fakeRepoStore) ReplaceBranches(_ context.Context, repositoryID int64, branches []model.Branch) error {
	s.branches[repositoryID] = branches
	return nil
}

func (s *fakeRepoStore) ListBranches(_ context.Context, repositoryID int64) ([]model.Branch, error) {
	return s.branches[repositoryID], nil
}

// fakeOrgStore is an in-memory OrgStore.
type fakeOrgStore struct {
	nextID      int64
	users       map[int64]model.User
	memberships []model.Membership
	teams       map[int64]model.Team
	teamMembers []model.TeamMembership
}

var _ driven.OrgStore = (*fakeOrgStore)(nil)

func newFakeOrgStore() *fakeOrgStore {
	return &fakeOrgStore{
		users: map[int64]model.User{},
		teams: map[int64]model.Team{},
	}
}

func (s *fakeOrgStore) AddOrganisation(_ context.Context, org model.Organisation) (int64, error) {
	s.nextID++
	return s.nextID, nil
}

func (s *fakeOrgStore) GetOrganisation(_ context.Context, id int64) (*model.Organisation, error) {
	return nil, nil
}

func (s *fakeOrgStore) AddUser(_ context.Context, user model.User) (int64, error) {
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *fakeOrgStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (s *fakeOrgStore) AddMembership(_ context.Context, m model.Membership) (int64, error) {
	s.nextID++
	m.ID = s.nextID
	s.memberships = append(s.memberships, m)
	return m.ID, nil
}

func (s *fakeOrgStore) GetMembership(_ context.Context, userID, organisationID int64) (*model.Membership, error) {
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganisationID == organisationID {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeOrgStore) AddTeam(_ context.Context, team model.Team) (int64, error) {
	s.nextID++
	team.ID = s.nextID
	s.teams[team.ID] = team
	return team.ID, nil
}

func (s *fakeOrgStore) AddTeamMember(_ context.Context, tm model.TeamMembership) (int64, error) {
	s.nextID++
	tm.ID = s.nextID
	s.teamMembers = append(s.teamMembers, tm)
	return tm.ID, nil
}

func (s *fakeOrgStore) ListUserTeams(_ context.Context, userID, organisationID int64) ([]model.Team, error) {
	var out []model.Team
	for _, tm := range s.teamMembers {
		if tm.UserID != userID || !tm.IsActive {
			continue
		}
		team, ok := s.teams[tm.TeamID]
		if !ok || team.OrganisationID != organisationID || !team.IsActive {
			continue
		}
		out = append(out, team)
	}
	return out, nil
}

// fakePolicyStore is an in-memory PolicyStore.
type fakePolicyStore struct {
	policies []model.AccessPolicy
}

var _ driven.PolicyStore = (*fakePolicyStore)(nil)

func (s *fakePolicyStore) Upsert(_ context.Context, policy model.AccessPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policies = append(s.policies, policy)
	return nil
}

func (s *fakePolicyStore) GetRolePolicy(_ context.Context, repositoryID int64, role model.Permission) (*model.AccessPolicy, error) {
	for _, p := range s.policies {
		if p.RepositoryID == repositoryID && p.Role != nil && *p.Role == role {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakePolicyStore) ListTeamPolicies(_ context.Context, repositoryID int64) ([]model.AccessPolicy, error) {
	var out []model.AccessPolicy
	for _, p := range s.policies {
		if p.RepositoryID == repositoryID && p.TeamID != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeSyncTaskStore is an in-memory SyncTaskStore.
type fakeSyncTaskStore struct {
	nextID int64
	tasks  map[int64]model.SyncTask
}

var _ driven.SyncTaskStore = (*fakeSyncTaskStore)(nil)

func newFakeSyncTaskStore() *fakeSyncTaskStore {
	return &fakeSyncTaskStore{tasks: map[int64]model.SyncTask{}}
}

func (s *fakeSyncTaskStore) Add(_ context.Context, task model.SyncTask) (int64, error) {
	s.nextID++
	task.ID = s.nextID
	if task.Status == "" {
		task.Status = model.SyncStatusPending
	}
	task.CreatedAt = time.Now().UTC()
	s.tasks[task.ID] = task
	return task.ID, nil
}

func (s *fakeSyncTaskStore) Update(_ context.Context, task model.SyncTask) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return fmt.Errorf("sync task %d not found", task.ID)
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeSyncTaskStore) GetByID(_ context.Context, id int64) (*model.SyncTask, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (s *fakeSyncTaskStore) ListByRepository(_ context.Context, repositoryID int64) ([]model.SyncTask, error) {
	var out []model.SyncTask
	for _, task := range s.tasks {
		if task.RepositoryID == repositoryID {
			out = append(out, task)
		}
	}
	return out, nil
}

// fakeDocStore is an in-memory DocStore with the same natural-key upsert
// semantics as the sqlite implementation.
type fakeDocStore struct {
	nextID    int64
	documents map[int64]model.Document
	builds    map[int64]model.Build
	pages     map[int64]model.Page
	blocks    map[string]model.ContentBlock
	sections  map[string]model.Section // keyed "pageID:hash"
	assets    map[string]model.StaticAsset
}

var _ driven.DocStore = (*fakeDocStore)(nil)

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		documents: map[int64]model.Document{},
		builds:    map[int64]model.Build{},
		pages:     map[int64]model.Page{},
		blocks:    map[string]model.ContentBlock{},
		sections:  map[string]model.Section{},
		assets:    map[string]model.StaticAsset{},
	}
}

func (s *fakeDocStore) AddDocument(_ context.Context, doc model.Document) (int64, error) {
	s.nextID++
	doc.ID = s.nextID
	s.documents[doc.ID] = doc
	return doc.ID, nil
}

func (s *fakeDocStore) GetDocument(_ context.Context, id int64) (*model.Document, error) {
	doc, ok := s.documents[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *fakeDocStore) FinalizeDocument(_ context.Context, id int64, lastBuildAt time.Time, globalContext string) error {
	doc, ok := s.documents[id]
	if !ok {
		return driven.ErrDocumentNotFound
	}
	doc.LastBuildAt = &lastBuildAt
	doc.GlobalContext = globalContext
	s.documents[id] = doc
	return nil
}

func (s *fakeDocStore) AddBuild(_ context.Context, build model.Build) (int64, error) {
	s.nextID++
	build.ID = s.nextID
	s.builds[build.ID] = build
	return build.ID, nil
}

func (s *fakeDocStore) GetBuild(_ context.Context, id int64) (*model.Build, error) {
	build, ok := s.builds[id]
	if !ok {
		return nil, nil
	}
	return &build, nil
}

func (s *fakeDocStore) SetBuildVersion(_ context.Context, id int64, commitHash, version string) error {
	build, ok := s.builds[id]
	if !ok {
		return driven.ErrDocumentNotFound
	}
	build.CommitHash = commitHash
	build.Version = version
	s.builds[id] = build
	return nil
}

func (s *fakeDocStore) UpsertPage(_ context.Context, page model.Page) (int64, error) {
	for id, existing := range s.pages {
		if existing.DocumentID == page.DocumentID && existing.Name == page.Name {
			page.ID = id
			s.pages[id] = page
			return id, nil
		}
	}
	s.nextID++
	page.ID = s.nextID
	s.pages[page.ID] = page
	return page.ID, nil
}

func (s *fakeDocStore) GetPage(_ context.Context, documentID int64, name string) (*model.Page, error) {
	for _, page := range s.pages {
		if page.DocumentID == documentID && page.Name == name {
			found := page
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeDocStore) ListPages(_ context.Context, documentID int64) ([]model.Page, error) {
	var out []model.Page
	for _, page := range s.pages {
		if page.DocumentID == documentID {
			out = append(out, page)
		}
	}
	return out, nil
}

func (s *fakeDocStore) GetOrCreateContentBlock(_ context.Context, contentHash, body string) (*model.ContentBlock, error) {
	if block, ok := s.blocks[contentHash]; ok {
		return &block, nil
	}
	block := model.ContentBlock{ContentHash: contentHash, Body: body, CreatedAt: time.Now().UTC()}
	s.blocks[contentHash] = block
	return &block, nil
}

func (s *fakeDocStore) GetContentBlock(_ context.Context, contentHash string) (*model.ContentBlock, error) {
	block, ok := s.blocks[contentHash]
	if !ok {
		return nil, nil
	}
	return &block, nil
}

func (s *fakeDocStore) CountContentBlocks(_ context.Context, contentHash string) (int, error) {
	if _, ok := s.blocks[contentHash]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *fakeDocStore) UpsertSection(_ context.Context, section model.Section) error {
	key := strconv.FormatInt(section.PageID, 10) + ":" + section.ContentHash
	s.sections[key] = section
	return nil
}

func (s *fakeDocStore) ListSections(_ context.Context, pageID int64) ([]model.Section, error) {
	var out []model.Section
	prefix := strconv.FormatInt(pageID, 10) + ":"
	for key, section := range s.sections {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, section)
		}
	}
	return out, nil
}

func (s *fakeDocStore) UpsertAsset(_ context.Context, asset model.StaticAsset) error {
	key := strconv.FormatInt(asset.DocumentID, 10) + ":" + asset.Path
	s.assets[key] = asset
	return nil
}

func (s *fakeDocStore) ListAssets(_ context.Context, documentID int64) ([]model.StaticAsset, error) {
	var out []model.StaticAsset
	for _, asset := range s.assets {
		if asset.DocumentID == documentID {
			out = append(out, asset)
		}
	}
	return out, nil
}

// fakeGitClient is a configurable GitClient. Unset function fields default to
// success with zero values.
type fakeGitClient struct {
	initBareFn      func(ctx context.Context, path string) error
	cloneMirrorFn   func(ctx context.Context, url, path string) error
	cloneFn         func(ctx context.Context, url, path string, bare bool) error
	fetchPruneFn    func(ctx context.Context, path string) error
	isRepositoryFn  func(ctx context.Context, path string) bool
	worktreeAddFn   func(ctx context.Context, repoPath, worktreePath, ref string) error
	worktreeRmFn    func(ctx context.Context, repoPath, worktreePath string, force bool) error
	headCommitFn    func(ctx context.Context, path string) (string, error)
	describeFn      func(ctx context.Context, path string) (string, error)
	countCommitsFn  func(ctx context.Context, path string) (int, error)
	defaultBranchFn func(ctx context.Context, path string) (string, error)
	listBranchesFn  func(ctx context.Context, path string) ([]driven.RefInfo, error)
}

var _ driven.GitClient = (*fakeGitClient)(nil)

func (g *fakeGitClient) InitBare(ctx context.Context, path string) error {
	if g.initBareFn != nil {
		return g.initBareFn(ctx, path)
	}
	return nil
}

func (g *fakeGitClient) CloneMirror(ctx context.Context, url, path string) error {
	if g.cloneMirrorFn != nil {
		return g.cloneMirrorFn(ctx, url, path)
	}
	return nil
}

func (g *fakeGitClient) Clone(ctx context.Context, url, path string, bare bool) error {
	if g.cloneFn != nil {
		return g.cloneFn(ctx, url, path, bare)
	}
	return nil
}

func (g *fakeGitClient) FetchPrune(ctx context.Context, path string) error {
	if g.fetchPruneFn != nil {
		return g.fetchPruneFn(ctx, path)
	}
	return nil
}

func (g *fakeGitClient) IsRepository(ctx context.Context, path string) bool {
	if g.isRepositoryFn != nil {
		return g.isRepositoryFn(ctx, path)
	}
	return true
}

func (g *fakeGitClient) WorktreeAdd(ctx context.Context, repoPath, worktreePath, ref string) error {
	if g.worktreeAddFn != nil {
		return g.worktreeAddFn(ctx, repoPath, worktreePath, ref)
	}
	return nil
}

func (g *fakeGitClient) WorktreeRemove(ctx context.Context, repoPath, worktreePath string, force bool) error {
	if g.worktreeRmFn != nil {
		return g.worktreeRmFn(ctx, repoPath, worktreePath, force)
	}
	return nil
}

func (g *fakeGitClient) HeadCommit(ctx context.Context, path string) (string, error) {
	if g.headCommitFn != nil {
		return g.headCommitFn(ctx, path)
	}
	return "", nil
}

func (g *fakeGitClient) Describe(ctx context.Context, path string) (string, error) {
	if g.describeFn != nil {
		return g.describeFn(ctx, path)
	}
	return "", nil
}

func (g *fakeGitClient) CountCommits(ctx context.Context, path string) (int, error) {
	if g.countCommitsFn != nil {
		return g.countCommitsFn(ctx, path)
	}
	return 0, nil
}

func (g *fakeGitClient) DefaultBranch(ctx context.Context, path string) (string, error) {
	if g.defaultBranchFn != nil {
		return g.defaultBranchFn(ctx, path)
	}
	return "", nil
}

func (g *fakeGitClient) ListBranches(ctx context.Context, path string) ([]driven.RefInfo, error) {
	if g.listBranchesFn != nil {
		return g.listBranchesFn(ctx, path)
	}
	return nil, nil
}

func (g *fakeGitClient) ListTags(context.Context, string) ([]driven.RefInfo, error) {
	return nil, nil
}

func (g *fakeGitClient) Commits(context.Context, string, string, int, int) ([]driven.CommitInfo, error) {
	return nil, nil
}

func (g *fakeGitClient) FileContent(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (g *fakeGitClient) ListTree(context.Context, string, string, string) ([]driven.TreeEntry, error) {
	return nil, nil
}

// fakeDispatcher runs tasks synchronously and records dispatch keys.
type fakeDispatcher struct {
	nextHandle int
	keys       []string
	dispatchFn func(ctx context.Context, key string, fn driven.TaskFunc) (string, error)
}

var _ driven.TaskDispatcher = (*fakeDispatcher)(nil)

func (d *fakeDispatcher) Dispatch(ctx context.Context, key string, fn driven.TaskFunc) (string, error) {
	if d.dispatchFn != nil {
		return d.dispatchFn(ctx, key, fn)
	}
	d.nextHandle++
	d.keys = append(d.keys, key)
	if err := fn(ctx); err != nil {
		return "", err
	}
	return "handle-" + strconv.Itoa(d.nextHandle), nil
}

// fakeProbe is a configurable SourceProbe.
type fakeProbe struct {
	probeFn func(ctx context.Context, sourceURL string) (*driven.SourceInfo, error)
}

var _ driven.SourceProbe = (*fakeProbe)(nil)

func (p *fakeProbe) Probe(ctx context.Context, sourceURL string) (*driven.SourceInfo, error) {
	if p.probeFn != nil {
		return p.probeFn(ctx, sourceURL)
	}
	return &driven.SourceInfo{DefaultBranch: "main"}, nil
}

// fakeRenderer is a configurable DocRenderer.
type fakeRenderer struct {
	renderFn func(ctx context.Context, req driven.RenderRequest, hooks driven.RenderHooks) error
}

var _ driven.DocRenderer = (*fakeRenderer)(nil)

func (r *fakeRenderer) Render(ctx context.Context, req driven.RenderRequest, hooks driven.RenderHooks) error {
	if r.renderFn != nil {
		return r.renderFn(ctx, req, hooks)
	}
	return nil
}
