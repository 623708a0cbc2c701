package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nabil/devstash/internal/apperror"
	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

type backupFixture struct {
	svc      *BackupService
	items    *memItemRepo
	projects *memProjectRepo
	users    *memUserRepo
	backups  *memBackupRepo
	files    *memBlobStore
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()
	f := &backupFixture{
		items:    newMemItemRepo(),
		projects: newMemProjectRepo(),
		users:    newMemUserRepo(),
		backups:  newMemBackupRepo(),
		files:    newMemBlobStore(),
	}
	f.svc = NewBackupService(f.items, f.projects, f.users, f.backups, f.files,
		NewItemCache(), testLogger())
	return f
}

func (f *backupFixture) seed(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	user := &model.User{ID: userID, Email: userID + "@example.com", DisplayName: userID,
		Settings: model.DefaultSettings()}
	user.SetRole(model.RoleFree)
	if err := f.users.Create(ctx, user); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	project := &model.Project{Name: "work", UserID: userID}
	if err := f.projects.Create(ctx, project); err != nil {
		t.Fatalf("seeding project: %v", err)
	}

	seedItems := []model.Item{
		{Kind: model.KindSnippet, Title: "s1", Content: "code", Language: "go", UserID: userID, ProjectID: project.ID},
		{Kind: model.KindNote, Title: "n1", Content: "text", UserID: userID},
		{Kind: model.KindChecklist, Title: "c1", UserID: userID,
			Entries: []model.ChecklistEntry{{Text: "step", Checked: true}}},
	}
	for i := range seedItems {
		if err := f.items.Create(ctx, &seedItems[i]); err != nil {
			t.Fatalf("seeding item: %v", err)
		}
	}
}

func TestExport_WritesArchiveWithAllCollections(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	f.seed(t, "u1")

	backup, err := f.svc.Export(ctx, "u1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if backup.ID == "" || backup.FileName == "" || backup.DownloadURL == "" {
		t.Errorf("backup record incomplete: %+v", backup)
	}

	data, err := f.files.Get(ctx, "backups/u1/"+backup.FileName)
	if err != nil {
		t.Fatalf("stored archive missing: %v", err)
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		t.Fatalf("archive is not valid JSON: %v", err)
	}
	if len(archive.Snippets) != 1 || len(archive.Notes) != 1 || len(archive.Checklists) != 1 {
		t.Errorf("collections = %d/%d/%d, want 1 each",
			len(archive.Snippets), len(archive.Notes), len(archive.Checklists))
	}
	if len(archive.Projects) != 1 {
		t.Errorf("projects = %d, want 1", len(archive.Projects))
	}
	if archive.Profile == nil || archive.Profile.ID != "u1" {
		t.Errorf("profile = %+v", archive.Profile)
	}

	records, err := f.svc.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("backup records = %d, want 1", len(records))
	}
}

func TestExportImport_RoundTripPreservesIDs(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()
	f.seed(t, "u1")

	backup, err := f.svc.Export(ctx, "u1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	data, _ := f.files.Get(ctx, "backups/u1/"+backup.FileName)

	before, _ := f.items.ListOrdered(ctx, itemFilterFor("u1", model.KindSnippet))
	originalID := before[0].ID

	// Wipe and restore.
	for id := range f.items.items {
		delete(f.items.items, id)
	}
	for id := range f.projects.projects {
		delete(f.projects.projects, id)
	}

	result, err := f.svc.Import(ctx, "u1", data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Items != 3 || result.Projects != 1 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}

	after, _ := f.items.ListOrdered(ctx, itemFilterFor("u1", model.KindSnippet))
	if len(after) != 1 || after[0].ID != originalID {
		t.Errorf("restored snippet = %+v, want original id %s", after, originalID)
	}

	// A second import of the same archive replaces rather than
	// duplicates.
	if _, err := f.svc.Import(ctx, "u1", data); err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	again, _ := f.items.ListOrdered(ctx, itemFilterFor("u1", model.KindSnippet))
	if len(again) != 1 {
		t.Errorf("after re-import: %d snippets, want 1", len(again))
	}
}

func TestImport_RejectsArchivesMissingCollections(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"empty object", "{}"},
		{"missing checklists", `{"snippets":[],"notes":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Import(ctx, "u1", []byte(tc.body))
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestImport_SkipsForeignRecords(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	archive := Archive{
		Snippets: []model.Item{
			{ID: "mine", Kind: model.KindSnippet, Title: "ok", UserID: "u1"},
			{ID: "theirs", Kind: model.KindSnippet, Title: "stolen", UserID: "u2"},
		},
		Notes:      []model.Item{},
		Checklists: []model.Item{},
		Projects: []model.Project{
			{ID: "p-theirs", Name: "foreign", UserID: "u2"},
		},
	}
	data, _ := json.Marshal(archive)

	result, err := f.svc.Import(ctx, "u1", data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Items != 1 || result.Projects != 0 || result.Skipped != 2 {
		t.Errorf("result = %+v, want 1 item restored and 2 skipped", result)
	}
	if _, err := f.items.GetByID(ctx, "theirs"); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("foreign item was restored")
	}
}

func TestImport_AdoptsRecordsWithoutOwner(t *testing.T) {
	f := newBackupFixture(t)
	ctx := context.Background()

	archive := Archive{
		Snippets:   []model.Item{{ID: "orphan", Kind: model.KindSnippet, Title: "x"}},
		Notes:      []model.Item{},
		Checklists: []model.Item{},
	}
	data, _ := json.Marshal(archive)

	if _, err := f.svc.Import(ctx, "u1", data); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	restored, err := f.items.GetByID(ctx, "orphan")
	if err != nil {
		t.Fatalf("restored item missing: %v", err)
	}
	if restored.UserID != "u1" {
		t.Errorf("UserID = %q, want the importing user", restored.UserID)
	}
}

func itemFilterFor(userID string, kind model.ItemKind) repository.ItemFilter {
	return repository.ItemFilter{UserID: userID, Kind: kind, OrderByUpdatedDesc: true}
}
