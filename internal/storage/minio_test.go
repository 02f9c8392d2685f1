package storage

import (
	"reflect"
	"testing"
	"time"
)

func TestBackupName(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 5, 7, 0, time.FixedZone("MSK", 3*3600))
	if got, want := BackupName(at), "errbook-20250310-060507.xlsx"; got != want {
		t.Errorf("BackupName = %q, want %q", got, want)
	}
}

func TestExpired(t *testing.T) {
	names := []string{
		"errbook-20250312-000000.xlsx",
		"notes.txt",
		"errbook-20250310-000000.xlsx",
		"errbook-20250311-000000.xlsx",
	}

	got := Expired(names, 2)
	want := []string{"errbook-20250310-000000.xlsx"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expired(keep=2) = %v, want %v", got, want)
	}
	if got := Expired(names, 5); got != nil {
		t.Errorf("Expired(keep=5) = %v, want nil", got)
	}
	if got := Expired(names, 0); len(got) != 3 {
		t.Errorf("Expired(keep=0) = %v", got)
	}
}
