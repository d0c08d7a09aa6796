package persist

import (
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"github.com/l1jgo/undoredo/internal/scene"
)

func TestObjectRowConversion(t *testing.T) {
	objs := []scene.Object{
		{Name: "guard", X: 5, Y: 6, MapID: 4, Heading: 2, HP: 10, MaxHP: 12, HasHealth: true, Tags: []string{"npc"}},
		{Name: "crate", X: 1, Y: 1},
	}
	rows := ObjectsToRows(objs)
	if rows[0].Seq != 0 || rows[1].Seq != 1 {
		t.Errorf("seq = %d,%d", rows[0].Seq, rows[1].Seq)
	}
	if rows[1].HP != nil || rows[1].MaxHP != nil {
		t.Error("objects without health must map to NULL hp")
	}
	if rows[1].Tags == nil {
		t.Error("tags must never be NULL")
	}
	if got := RowsToObjects(rows); !reflect.DeepEqual(got, objs) {
		t.Errorf("round trip = %+v, want %+v", got, objs)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, e := range entries {
		raw, err := fs.ReadFile(migrations, "migrations/"+e.Name())
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), "-- +goose Up") || !strings.Contains(string(raw), "-- +goose Down") {
			t.Errorf("%s lacks goose annotations", e.Name())
		}
	}
}
