package timesheet

import (
	"testing"
	"time"
)

func TestBuildEntryFilterEmpty(t *testing.T) {
	where, args := buildEntryFilter(EntryFilter{})
	if where != "" {
		t.Errorf("where = %q, want empty", where)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuildEntryFilterUserOnly(t *testing.T) {
	uid := int64(7)
	where, args := buildEntryFilter(EntryFilter{UserID: &uid})
	if where != " WHERE we.user_id = $1" {
		t.Errorf("where = %q", where)
	}
	if len(args) != 1 || args[0] != int64(7) {
		t.Errorf("args = %v", args)
	}
}

func TestBuildEntryFilterDateRange(t *testing.T) {
	uid := int64(7)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	where, args := buildEntryFilter(EntryFilter{UserID: &uid, From: &from, To: &to})

	want := " WHERE we.user_id = $1 AND we.work_date >= $2 AND we.work_date <= $3"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[1] != from || args[2] != to {
		t.Errorf("args = %v", args)
	}
}

func TestJoinClauses(t *testing.T) {
	if got := joinClauses(nil, " AND "); got != "" {
		t.Errorf("joinClauses(nil) = %q", got)
	}
	if got := joinClauses([]string{"a", "b", "c"}, " AND "); got != "a AND b AND c" {
		t.Errorf("joinClauses = %q", got)
	}
}
