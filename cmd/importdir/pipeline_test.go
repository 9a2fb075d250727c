package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/schema"
)

const peopleCSV = "name,AGE,Extra\nAnn,30,x\n,,\nBob,abc,y\n,5,\n"

func newPeopleService(t *testing.T) (*core.Service, core.Template) {
	t.Helper()
	svc := core.NewService(core.NewMemStore(), nil, core.Options{
		MaxConcurrentImports: 1,
		ImportWait:           time.Second,
		MaxFileSize:          1 << 20,
	})
	tmpl, err := svc.CreateTemplate(context.Background(), core.TemplateParams{
		Name: "People",
		Columns: []schema.Column{
			{Label: "Name", DataType: schema.TypeText},
			{Label: "Age", DataType: schema.TypeNumber},
		},
	})
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return svc, tmpl
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", "x")
	writeFile(t, dir, "a.XLSX", "x")
	writeFile(t, dir, "notes.txt", "x")
	if err := os.Mkdir(filepath.Join(dir, "imported.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := uploadFiles(dir)
	if err != nil {
		t.Fatalf("uploadFiles: %v", err)
	}
	want := []string{"a.XLSX", "b.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("uploadFiles = %v, want %v", got, want)
	}

	if _, err := uploadFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("uploadFiles(missing) error = nil, want error")
	}
}

func TestProcessDir_DryRun(t *testing.T) {
	svc, tmpl := newPeopleService(t)
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", peopleCSV)

	sum, err := processDir(context.Background(), svc, dirOptions{dir: dir, templateID: tmpl.ID, doneDir: "imported"})
	if err != nil {
		t.Fatalf("processDir: %v", err)
	}
	if sum.Files != 1 || sum.ValidRows != 1 || sum.InvalidRows != 2 {
		t.Errorf("summary = %+v, want 1 file, 1 valid, 2 invalid", sum)
	}

	if _, err := os.Stat(filepath.Join(dir, "people.csv")); err != nil {
		t.Errorf("dry run moved the file: %v", err)
	}
	recs, err := svc.ListRecords(context.Background(), tmpl.ID, core.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records after dry run = %d, want 0", len(recs))
	}
}

func TestProcessDir_Apply(t *testing.T) {
	svc, tmpl := newPeopleService(t)
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", peopleCSV)
	report := filepath.Join(t.TempDir(), "errors.xlsx")

	opts := dirOptions{dir: dir, templateID: tmpl.ID, apply: true, doneDir: "imported", reportPath: report}
	sum, err := processDir(context.Background(), svc, opts)
	if err != nil {
		t.Fatalf("processDir: %v", err)
	}
	if sum.TotalRows != 4 || sum.InvalidRows != 2 {
		t.Errorf("summary = %+v, want 4 rows, 2 invalid", sum)
	}

	if _, err := os.Stat(filepath.Join(dir, "imported", "people.csv")); err != nil {
		t.Errorf("imported file not moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "people.csv")); !os.IsNotExist(err) {
		t.Errorf("source file still present, stat err = %v", err)
	}

	recs, err := svc.ListRecords(context.Background(), tmpl.ID, core.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("records = %d, want 3", len(recs))
	}

	if err := writeReport(context.Background(), svc, tmpl.ID, report); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if fi, err := os.Stat(report); err != nil || fi.Size() == 0 {
		t.Errorf("report stat = %v, %v; want a non-empty file", fi, err)
	}

	// A rerun finds nothing left to import.
	sum, err = processDir(context.Background(), svc, opts)
	if err != nil || sum.Files != 0 {
		t.Errorf("rerun = %+v, %v; want no files", sum, err)
	}
}

func TestProcessDir_KeepGoing(t *testing.T) {
	svc, tmpl := newPeopleService(t)
	dir := t.TempDir()
	writeFile(t, dir, "a_bad.csv", "Unrelated,Headers\n1,2\n")
	writeFile(t, dir, "b_people.csv", peopleCSV)

	opts := dirOptions{dir: dir, templateID: tmpl.ID, apply: true, doneDir: "imported"}
	if _, err := processDir(context.Background(), svc, opts); err == nil {
		t.Fatal("processDir error = nil, want header mismatch")
	}

	opts.keepGoing = true
	sum, err := processDir(context.Background(), svc, opts)
	if err != nil {
		t.Fatalf("processDir(keepGoing): %v", err)
	}
	if sum.Files != 2 || sum.Failed != 1 || sum.TotalRows != 4 {
		t.Errorf("summary = %+v, want 2 files, 1 failed, 4 rows", sum)
	}
	if _, err := os.Stat(filepath.Join(dir, "a_bad.csv")); err != nil {
		t.Errorf("failed file should stay in place: %v", err)
	}
}
